package persist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunastore/storefront/internal/cart"
	"github.com/lunastore/storefront/pkg/config"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	cfg := config.PersistConfig{
		Backend:    config.PersistBackendSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "cart.db"),
		Slot:       "cart_items",
	}
	store, err := NewSQLiteStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleLines() []cart.Line {
	stock := 5
	return []cart.Line{
		{
			CartItemID: "a",
			BackendID:  "99",
			ProductID:  "5",
			Name:       "Boot",
			UnitPrice:  "89.50",
			Quantity:   2,
			Size:       "40",
			Stock:      &stock,
		},
		{CartItemID: "b", ProductID: "6", Name: "Sock", UnitPrice: "4.00", Quantity: 1, Size: "M"},
	}
}

func TestSQLiteSaveAndLoadRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLines(ctx, sampleLines()))

	loaded, err := store.LoadLines(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "99", loaded[0].BackendID)
	assert.Equal(t, 2, loaded[0].Quantity)
	require.NotNil(t, loaded[0].Stock)
	assert.Equal(t, 5, *loaded[0].Stock)
	assert.Equal(t, "Sock", loaded[1].Name)
}

func TestSQLiteSaveOverwritesSlot(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLines(ctx, sampleLines()))
	require.NoError(t, store.SaveLines(ctx, sampleLines()[:1]))

	loaded, err := store.LoadLines(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1, "second save must replace the first")
}

func TestSQLiteLoadMissingSlot(t *testing.T) {
	store := newTestSQLiteStore(t)

	loaded, err := store.LoadLines(context.Background())
	require.NoError(t, err, "a missing slot is an empty cart")
	assert.Empty(t, loaded)
}

func TestSQLiteClearLines(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLines(ctx, sampleLines()))
	require.NoError(t, store.ClearLines(ctx))

	loaded, err := store.LoadLines(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestNewSQLiteStoreValidation(t *testing.T) {
	_, err := NewSQLiteStore(context.Background(), config.PersistConfig{Slot: "cart_items"}, nil)
	assert.Error(t, err, "missing path must be rejected")

	_, err = NewSQLiteStore(context.Background(), config.PersistConfig{SQLitePath: "x.db"}, nil)
	assert.Error(t, err, "missing slot must be rejected")
}
