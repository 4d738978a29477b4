package port

import "context"

type Transactor interface {
	// WithinTx runs fn as one unit of work. Repository calls made with the
	// context passed to fn join the unit; any error from fn undoes them all.
	// Calling WithinTx again inside fn joins the outer unit.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
