// Package persist stores the cart line list in a single durable slot so
// it survives restarts. Backends share one contract: the whole list is
// written and read as one JSON payload under a configured slot name.
package persist

import (
	"context"

	"github.com/lunastore/storefront/internal/cart"
)

// Store is the durable slot the cart writes through.
type Store interface {
	SaveLines(ctx context.Context, lines []cart.Line) error
	LoadLines(ctx context.Context) ([]cart.Line, error)
	ClearLines(ctx context.Context) error
}
