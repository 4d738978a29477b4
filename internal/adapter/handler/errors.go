package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/heladeria/internal/core/domain"
)

type errorKind struct {
	err    error
	code   string
	status int
	grpc   codes.Code
}

// Checked in order; the first match wins.
var errorKinds = []errorKind{
	{domain.ErrInvalidInput, "invalid_input", http.StatusBadRequest, codes.InvalidArgument},
	{domain.ErrUnauthenticated, "unauthenticated", http.StatusUnauthorized, codes.Unauthenticated},
	{domain.ErrInvalidCredentials, "invalid_credentials", http.StatusUnauthorized, codes.Unauthenticated},
	{domain.ErrForbidden, "forbidden", http.StatusForbidden, codes.PermissionDenied},
	{domain.ErrNotFound, "not_found", http.StatusNotFound, codes.NotFound},
	{domain.ErrDuplicateRequest, "duplicate_request", http.StatusConflict, codes.AlreadyExists},
	{domain.ErrConflict, "conflict", http.StatusConflict, codes.AlreadyExists},
	{domain.ErrOutOfStock, "out_of_stock", http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrInvalidState, "invalid_state", http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrStoreUnavailable, "store_unavailable", http.StatusServiceUnavailable, codes.Unavailable},
}

var internalError = errorKind{code: "internal_error", status: http.StatusInternalServerError, grpc: codes.Internal}

func classify(err error) errorKind {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k
		}
	}
	return internalError
}

// publicMessage hides causes the client cannot act on.
func publicMessage(k errorKind, err error) string {
	switch k.code {
	case "store_unavailable":
		return "service temporarily unavailable"
	case "internal_error":
		return "internal error"
	}
	return err.Error()
}
