package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lunastore/storefront/internal/cart"
	pkgerrors "github.com/lunastore/storefront/pkg/errors"
	"github.com/lunastore/storefront/pkg/logger"
	"github.com/lunastore/storefront/pkg/metrics"
)

type rebuilder interface {
	Reconcile(ctx context.Context) error
	Authenticated() bool
}

type pendingEdit struct {
	requested int
	prevQty   int
}

// Pipeline applies user-initiated quantity changes: optimistic local
// update first, then a per-line debounced remote PATCH with the settled
// value. Transport failures roll the optimistic update back; every
// other backend answer is applied as a normal correction.
type Pipeline struct {
	store   *cart.Store
	gw      Gateway
	orch    rebuilder
	logg    *logger.Logger
	metrics *metrics.CartSyncMetrics

	debounce time.Duration

	mu       sync.Mutex
	timers   map[string]*time.Timer
	versions map[string]uint64
	pending  map[string]pendingEdit
	closed   bool
}

// NewPipeline builds the quantity change pipeline.
func NewPipeline(store *cart.Store, gw Gateway, orch rebuilder, logg *logger.Logger, m *metrics.CartSyncMetrics, debounce time.Duration) *Pipeline {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Pipeline{
		store:    store,
		gw:       gw,
		orch:     orch,
		logg:     logg,
		metrics:  m,
		debounce: debounce,
		timers:   map[string]*time.Timer{},
		versions: map[string]uint64{},
		pending:  map[string]pendingEdit{},
	}
}

// RequestQuantity handles one user edit. The local store is updated
// before any network call so the UI never appears to ignore input; only
// the value that settles after the debounce window reaches the network.
func (p *Pipeline) RequestQuantity(ctx context.Context, cartItemID string, requested int) error {
	line, ok := p.store.Line(cartItemID)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}

	adjusted := requested
	if requested > 0 && line.Stock != nil && requested > *line.Stock {
		adjusted = *line.Stock
		p.store.SetToast(fmt.Sprintf("only %d of %s in stock", *line.Stock, line.Name), cart.SeverityWarning)
		p.metrics.IncStockClamp()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	// A new edit supersedes any in-flight response for this line.
	p.versions[cartItemID]++
	if _, exists := p.pending[cartItemID]; !exists {
		p.pending[cartItemID] = pendingEdit{prevQty: line.Quantity}
	}
	edit := p.pending[cartItemID]
	edit.requested = requested
	p.pending[cartItemID] = edit
	p.mu.Unlock()

	if err := p.store.UpdateQuantity(ctx, cartItemID, adjusted); err != nil {
		p.forget(cartItemID)
		return err
	}

	if adjusted <= 0 {
		// Removal took the line out of the store; nothing to sync here.
		p.forget(cartItemID)
		return nil
	}
	if !line.Synced() || !p.orch.Authenticated() {
		p.forget(cartItemID)
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	if timer, ok := p.timers[cartItemID]; ok {
		timer.Stop()
	}
	p.timers[cartItemID] = time.AfterFunc(p.debounce, func() {
		p.flush(context.Background(), cartItemID)
	})
	p.mu.Unlock()
	return nil
}

// Close stops every per-line timer so orphaned callbacks cannot mutate
// state after the view is gone.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for id, timer := range p.timers {
		timer.Stop()
		delete(p.timers, id)
	}
}

func (p *Pipeline) flush(ctx context.Context, cartItemID string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	edit, ok := p.pending[cartItemID]
	if !ok {
		p.mu.Unlock()
		return
	}
	version := p.versions[cartItemID]
	delete(p.timers, cartItemID)
	p.mu.Unlock()

	line, ok := p.store.Line(cartItemID)
	if !ok || !line.Synced() {
		p.forget(cartItemID)
		return
	}

	result, err := p.gw.UpdateItem(ctx, line.BackendID, line.Quantity)

	p.mu.Lock()
	stale := p.closed || p.versions[cartItemID] != version
	p.mu.Unlock()
	if stale {
		// A newer edit owns this line now; its own flush will settle it.
		p.metrics.IncStaleDiscard()
		return
	}
	defer p.forget(cartItemID)

	if err != nil {
		// The one case where the optimistic update is undone.
		if rbErr := p.store.UpdateQuantity(ctx, cartItemID, edit.prevQty); rbErr != nil && p.logg != nil {
			p.logg.Error(ctx, "quantity rollback failed", rbErr)
		}
		p.store.SetToast("could not update quantity, restored previous value", cart.SeverityError)
		p.metrics.IncRollback()
		if p.logg != nil {
			ctx = p.logg.WithLineID(ctx, cartItemID)
			p.logg.Error(ctx, "remote quantity update failed", err)
		}
		return
	}

	switch {
	case result.Removed:
		p.store.RemoveItem(ctx, cartItemID)
		p.store.SetToast(line.Name+" is no longer available and was removed", cart.SeverityWarning)
		if err := p.orch.Reconcile(ctx); err != nil && p.logg != nil {
			p.logg.Warn(ctx, "cart rebuild after remote removal failed")
		}

	case result.AvailableStock != nil && *result.AvailableStock < edit.requested:
		target := *result.AvailableStock
		if result.Line != nil && result.Line.Quantity > 0 {
			target = result.Line.Quantity
		}
		if err := p.store.UpdateQuantity(ctx, cartItemID, target); err != nil && p.logg != nil {
			p.logg.Error(ctx, "applying server-clamped quantity failed", err)
		}
		if result.Line != nil {
			p.store.RefreshFromRemote(ctx, line.BackendID, *result.Line)
		}
		p.store.SetToast(fmt.Sprintf("only %d of %s left", *result.AvailableStock, line.Name), cart.SeverityWarning)
		p.metrics.IncStockClamp()

	case result.Line != nil:
		// Keep local pricing/inventory in sync without touching quantity.
		p.store.RefreshFromRemote(ctx, line.BackendID, *result.Line)
	}
}

func (p *Pipeline) forget(cartItemID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, cartItemID)
	if timer, ok := p.timers[cartItemID]; ok {
		timer.Stop()
		delete(p.timers, cartItemID)
	}
}
