package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRole_Capabilities(t *testing.T) {
	all := []Capability{CapCancelAnyOrder, CapListAllOrders, CapCompleteOrder, CapManageCatalog, CapViewReports}
	for _, c := range all {
		assert.True(t, RoleAdmin.Can(c))
		assert.False(t, RoleCustomer.Can(c))
		assert.False(t, Role(0).Can(c))
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("admin")
	assert.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	r, err = ParseRole(RoleCustomer.String())
	assert.NoError(t, err)
	assert.Equal(t, RoleCustomer, r)

	_, err = ParseRole("Admin")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestPrincipal(t *testing.T) {
	o := Order{AccountID: "acc-1"}

	owner := Principal{AccountID: "acc-1", Role: RoleCustomer}
	other := Principal{AccountID: "acc-2", Role: RoleCustomer}
	anon := Principal{}

	assert.True(t, owner.Owns(o))
	assert.False(t, other.Owns(o))
	assert.False(t, anon.Owns(Order{}))
	assert.False(t, anon.Can(CapViewReports))
}

func TestOrderStatus_CanTransition(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransition(OrderStatusCancelled))
	assert.True(t, OrderStatusPending.CanTransition(OrderStatusCompleted))
	assert.False(t, OrderStatusPending.CanTransition(OrderStatusPending))
	assert.False(t, OrderStatusCompleted.CanTransition(OrderStatusCancelled))
	assert.False(t, OrderStatusCancelled.CanTransition(OrderStatusCompleted))
}

func TestNewSaleEvent(t *testing.T) {
	o := Order{ID: "o-1", Items: []LineItem{
		{ProductID: "p", Quantity: 2, UnitPrice: decimal.RequireFromString("2.50")},
		{ProductID: "q", Quantity: 1},
	}}

	placed := NewSaleEvent(o, 1)
	assert.Equal(t, "o-1:placed", placed.ID)
	assert.Equal(t, []SaleLine{{"p", 2}, {"q", 1}}, placed.Lines)

	cancelled := NewSaleEvent(o, -1)
	assert.Equal(t, "o-1:cancelled", cancelled.ID)
	assert.Equal(t, []SaleLine{{"p", -2}, {"q", -1}}, cancelled.Lines)

	assert.Equal(t, "5", o.Items[0].Subtotal().String())
}
