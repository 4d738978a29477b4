package domain

import (
	"fmt"
	"time"
)

type Role uint8

const (
	RoleCustomer Role = iota + 1
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleAdmin:
		return "admin"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole maps the persisted/token form of a role back to the enum.
func ParseRole(s string) (Role, error) {
	switch s {
	case "customer":
		return RoleCustomer, nil
	case "admin":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

type Capability uint8

const (
	CapCancelAnyOrder Capability = iota + 1
	CapListAllOrders
	CapCompleteOrder
	CapManageCatalog
	CapViewReports
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleAdmin: {
		CapCancelAnyOrder: true,
		CapListAllOrders:  true,
		CapCompleteOrder:  true,
		CapManageCatalog:  true,
		CapViewReports:    true,
	},
	RoleCustomer: {},
}

func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}

type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Principal is the authenticated identity acting on a request.
type Principal struct {
	AccountID string
	Role      Role
}

func (p Principal) Authenticated() bool {
	return p.AccountID != "" && p.Role != 0
}

func (p Principal) Can(c Capability) bool {
	return p.Authenticated() && p.Role.Can(c)
}

func (p Principal) Owns(o Order) bool {
	return p.Authenticated() && o.AccountID == p.AccountID
}
