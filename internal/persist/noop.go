package persist

import (
	"context"

	"github.com/lunastore/storefront/internal/cart"
)

// NoopStore discards writes and loads nothing. Used for ephemeral
// hosts and tests that do not care about durability.
type NoopStore struct{}

// NewNoopStore returns the no-op slot store.
func NewNoopStore() *NoopStore { return &NoopStore{} }

func (*NoopStore) SaveLines(context.Context, []cart.Line) error { return nil }

func (*NoopStore) LoadLines(context.Context) ([]cart.Line, error) { return nil, nil }

func (*NoopStore) ClearLines(context.Context) error { return nil }
