package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/lunastore/storefront/internal/cart"
	"github.com/lunastore/storefront/internal/gateway"
	"github.com/lunastore/storefront/pkg/logger"
	"github.com/lunastore/storefront/pkg/metrics"
)

// Gateway is the remote cart surface the orchestrator depends on.
type Gateway interface {
	FetchCart(ctx context.Context) (*gateway.Snapshot, error)
	UpdateItem(ctx context.Context, backendID string, quantity int) (*gateway.UpdateResult, error)
	RemoveItem(ctx context.Context, backendID string) (*gateway.RemoveResult, error)
	AddItem(ctx context.Context, variantID string, quantity int) error
}

// Options tunes the orchestrator.
type Options struct {
	// RefreshDebounce is the quiescence window after a line-count change
	// before the remote cart is re-fetched.
	RefreshDebounce time.Duration
	// FailClosed blocks checkout when the remote cart cannot be fetched
	// instead of the observed fail-open behavior.
	FailClosed bool
}

// Orchestrator keeps the local cart consistent with the remote cart once
// the session allows synchronization, without discarding lines added
// while signed out.
type Orchestrator struct {
	store   *cart.Store
	gw      Gateway
	logg    *logger.Logger
	metrics *metrics.CartSyncMetrics
	opts    Options

	mu            sync.Mutex
	authenticated bool
	refreshTimer  *time.Timer
	closed        bool
}

// NewOrchestrator wires the orchestrator to the store's line-count
// changes.
func NewOrchestrator(store *cart.Store, gw Gateway, logg *logger.Logger, m *metrics.CartSyncMetrics, opts Options) *Orchestrator {
	if opts.RefreshDebounce <= 0 {
		opts.RefreshDebounce = time.Second
	}
	o := &Orchestrator{
		store:   store,
		gw:      gw,
		logg:    logg,
		metrics: m,
		opts:    opts,
	}
	store.OnCountChange(o.handleCountChange)
	return o
}

// SetAuthenticated records the session state. The transition into an
// authenticated session triggers one reconciliation pass in the
// background.
func (o *Orchestrator) SetAuthenticated(authenticated bool) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	was := o.authenticated
	o.authenticated = authenticated
	if !authenticated && o.refreshTimer != nil {
		o.refreshTimer.Stop()
		o.refreshTimer = nil
	}
	o.mu.Unlock()

	if !was && authenticated {
		go func() {
			if err := o.Reconcile(context.Background()); err != nil && o.logg != nil {
				o.logg.Warn(context.Background(), "cart reconciliation failed after sign-in")
			}
		}()
	}
}

// Authenticated reports the recorded session state.
func (o *Orchestrator) Authenticated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.authenticated
}

// Reconcile runs one full merge pass against the remote cart.
//
// On fetch failure local state stays untouched and the cart-wide flags
// are reset to permissive defaults, so a broken connection never locks
// the shopper out of checkout. Options.FailClosed inverts that choice.
func (o *Orchestrator) Reconcile(ctx context.Context) error {
	snap, err := o.gw.FetchCart(ctx)
	if err != nil {
		o.metrics.IncReconcile("fetch_failed")
		if o.opts.FailClosed {
			o.store.SetFlags(false, "unable to verify cart availability", 0)
		} else {
			o.store.ResetFlags()
		}
		if o.logg != nil {
			o.logg.Error(ctx, "reconcile.fetch_failed", err)
		}
		return err
	}

	remote, clamps := clampLines(snap.Lines)
	for i := 0; i < clamps; i++ {
		o.metrics.IncStockClamp()
	}

	merged := mergeSnapshot(o.store.Lines(), remote)
	o.store.Replace(ctx, merged)

	if len(remote) == 0 {
		o.store.ResetFlags()
	} else {
		o.store.SetFlags(snap.CanCheckout, snap.CheckoutMessage, snap.InvalidItemsCount)
	}

	o.metrics.IncReconcile("success")
	if o.logg != nil {
		ctx = o.logg.WithFields(ctx, map[string]any{
			"remote_lines": len(remote),
			"merged_lines": len(merged),
			"clamps":       clamps,
		})
		o.logg.Debug(ctx, "reconcile.complete")
	}
	return nil
}

// Refresh re-fetches the remote cart and applies per-line stock and
// eligibility updates to synced lines by backend id, without replacing
// the list. Unsynced lines are re-clamped against their cached stock.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	snap, err := o.gw.FetchCart(ctx)
	if err != nil {
		o.metrics.IncReconcile("refresh_failed")
		if o.logg != nil {
			o.logg.Warn(ctx, "refresh fetch failed, keeping cached stock data")
		}
		return err
	}

	remote, clamps := clampLines(snap.Lines)
	for i := 0; i < clamps; i++ {
		o.metrics.IncStockClamp()
	}

	for _, line := range remote {
		o.store.RefreshFromRemote(ctx, line.BackendID, line)
	}

	for _, line := range o.store.Lines() {
		if line.Stock != nil && line.Quantity > *line.Stock {
			if err := o.store.UpdateQuantity(ctx, line.CartItemID, *line.Stock); err == nil {
				o.metrics.IncStockClamp()
			}
		}
	}

	if len(remote) > 0 {
		o.store.SetFlags(snap.CanCheckout, snap.CheckoutMessage, snap.InvalidItemsCount)
	}
	o.metrics.IncReconcile("refresh")
	return nil
}

// AddItem applies the add locally and pushes it to the remote cart in
// the background when the line carries a variant and the session is
// authenticated. Push failures are logged, never surfaced: the local
// store is already authoritative for the UI.
func (o *Orchestrator) AddItem(ctx context.Context, input cart.AddInput) (cart.Line, error) {
	line, err := o.store.AddItem(ctx, input)
	if err != nil {
		return cart.Line{}, err
	}

	if o.Authenticated() && input.VariantID != "" {
		qty := input.Quantity
		if qty == 0 {
			qty = 1
		}
		go func() {
			if err := o.gw.AddItem(context.Background(), input.VariantID, qty); err != nil && o.logg != nil {
				o.logg.Warn(context.Background(), "remote add-to-cart failed, local cart retained")
			}
		}()
	}
	return line, nil
}

// RemoveLine removes the line locally and, for synced lines in an
// authenticated session, deletes it remotely in the background.
func (o *Orchestrator) RemoveLine(ctx context.Context, cartItemID string) {
	line, ok := o.store.Line(cartItemID)
	if !ok {
		return
	}
	o.store.RemoveItem(ctx, cartItemID)
	if line.Name != "" {
		o.store.SetToast(line.Name+" removed from cart", cart.SeverityInfo)
	}

	if line.Synced() && o.Authenticated() {
		backendID := line.BackendID
		go func() {
			if _, err := o.gw.RemoveItem(context.Background(), backendID); err != nil && o.logg != nil {
				ctx := o.logg.WithBackendID(context.Background(), backendID)
				o.logg.Warn(ctx, "remote cart item delete failed")
			}
		}()
	}
}

// Close cancels any scheduled refresh so orphaned callbacks cannot
// mutate state after teardown.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	if o.refreshTimer != nil {
		o.refreshTimer.Stop()
		o.refreshTimer = nil
	}
}

func (o *Orchestrator) handleCountChange(count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || !o.authenticated {
		return
	}
	if !o.store.HasSyncedLines() {
		return
	}
	if o.refreshTimer != nil {
		o.refreshTimer.Stop()
	}
	o.refreshTimer = time.AfterFunc(o.opts.RefreshDebounce, func() {
		if err := o.Refresh(context.Background()); err != nil && o.logg != nil {
			o.logg.Warn(context.Background(), "debounced cart refresh failed")
		}
	})
}
