package reconcile

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lunastore/storefront/internal/cart"
	"github.com/lunastore/storefront/internal/gateway"
	pkgerrors "github.com/lunastore/storefront/pkg/errors"
)

type stubRebuilder struct {
	mu             sync.Mutex
	authed         bool
	reconcileCalls int
}

func (s *stubRebuilder) Reconcile(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcileCalls++
	return nil
}

func (s *stubRebuilder) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

func (s *stubRebuilder) reconciles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileCalls
}

type updateRecorder struct {
	mu    sync.Mutex
	calls []int
}

func (u *updateRecorder) record(quantity int) {
	u.mu.Lock()
	u.calls = append(u.calls, quantity)
	u.mu.Unlock()
}

func (u *updateRecorder) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

func newPipelineFixture(updateFn func(backendID string, quantity int) (*gateway.UpdateResult, error)) (*cart.Store, *Pipeline, *stubRebuilder) {
	store := cart.NewStore(nil, nil)
	rebuild := &stubRebuilder{authed: true}
	gw := &stubGateway{updateFn: updateFn}
	pipeline := NewPipeline(store, gw, rebuild, nil, nil, 10*time.Millisecond)
	return store, pipeline, rebuild
}

func syncedLine(qty int, stock *int) cart.Line {
	return cart.Line{
		CartItemID: "line-1",
		BackendID:  "99",
		ProductID:  "5",
		Name:       "Boot",
		UnitPrice:  "89.50",
		Size:       "40",
		Quantity:   qty,
		Stock:      stock,
	}
}

func TestRequestQuantityClampsToKnownStock(t *testing.T) {
	t.Parallel()

	stock := 3
	store, pipeline, _ := newPipelineFixture(func(string, int) (*gateway.UpdateResult, error) {
		return &gateway.UpdateResult{}, nil
	})
	defer pipeline.Close()
	store.Restore([]cart.Line{syncedLine(1, &stock)})

	if err := pipeline.RequestQuantity(context.Background(), "line-1", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line, _ := store.Line("line-1")
	if line.Quantity != 3 {
		t.Fatalf("expected quantity clamped to 3, got %d", line.Quantity)
	}
	toast := store.Toast()
	if toast == nil || toast.Severity != cart.SeverityWarning || !strings.Contains(toast.Message, "3") {
		t.Fatalf("expected max-stock warning toast, got %+v", toast)
	}
}

func TestOptimisticUpdateAppliesBeforeNetwork(t *testing.T) {
	t.Parallel()

	released := make(chan struct{})
	store, pipeline, _ := newPipelineFixture(func(string, int) (*gateway.UpdateResult, error) {
		<-released
		return &gateway.UpdateResult{}, nil
	})
	defer pipeline.Close()
	defer close(released)
	store.Restore([]cart.Line{syncedLine(1, nil)})

	if err := pipeline.RequestQuantity(context.Background(), "line-1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The gateway is still blocked; the store must already show the edit.
	line, _ := store.Line("line-1")
	if line.Quantity != 4 {
		t.Fatalf("expected optimistic quantity 4, got %d", line.Quantity)
	}
}

func TestRollbackOnTransportFailure(t *testing.T) {
	t.Parallel()

	recorder := &updateRecorder{}
	store, pipeline, _ := newPipelineFixture(func(_ string, quantity int) (*gateway.UpdateResult, error) {
		recorder.record(quantity)
		return nil, pkgerrors.New(pkgerrors.CodeNetwork, "unreachable")
	})
	defer pipeline.Close()
	store.Restore([]cart.Line{syncedLine(2, nil)})

	if err := pipeline.RequestQuantity(context.Background(), "line-1", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, func() bool {
		line, _ := store.Line("line-1")
		return line.Quantity == 2
	}, "rollback to pre-change quantity")

	toast := store.Toast()
	if toast == nil || toast.Severity != cart.SeverityError {
		t.Fatalf("expected error toast after rollback, got %+v", toast)
	}
	if recorder.count() != 1 {
		t.Fatalf("expected a single remote call, got %d", recorder.count())
	}
}

func TestServerClampRollsToAuthoritativeQuantity(t *testing.T) {
	t.Parallel()

	avail := 3
	authoritativeStock := 3
	store, pipeline, _ := newPipelineFixture(func(string, int) (*gateway.UpdateResult, error) {
		line := syncedLine(3, &authoritativeStock)
		line.UnitPrice = "79.00"
		return &gateway.UpdateResult{AvailableStock: &avail, Line: &line}, nil
	})
	defer pipeline.Close()
	store.Restore([]cart.Line{syncedLine(2, nil)})

	if err := pipeline.RequestQuantity(context.Background(), "line-1", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, func() bool {
		line, _ := store.Line("line-1")
		return line.Quantity == 3
	}, "server-clamped quantity")

	line, _ := store.Line("line-1")
	if line.UnitPrice != "79.00" {
		t.Fatalf("expected authoritative price applied, got %q", line.UnitPrice)
	}
	if line.Stock == nil || *line.Stock != 3 {
		t.Fatalf("expected authoritative stock cached, got %+v", line.Stock)
	}
	toast := store.Toast()
	if toast == nil || toast.Severity != cart.SeverityWarning || !strings.Contains(toast.Message, "3") {
		t.Fatalf("expected only-N-left toast, got %+v", toast)
	}
}

func TestSilentRemovalPurgesLineAndRebuilds(t *testing.T) {
	t.Parallel()

	store, pipeline, rebuild := newPipelineFixture(func(string, int) (*gateway.UpdateResult, error) {
		return &gateway.UpdateResult{Removed: true}, nil
	})
	defer pipeline.Close()
	store.Restore([]cart.Line{syncedLine(2, nil)})

	if err := pipeline.RequestQuantity(context.Background(), "line-1", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, func() bool { return rebuild.reconciles() == 1 }, "rebuild after silent removal")

	if _, ok := store.Line("line-1"); ok {
		t.Fatal("expected removed line to be purged")
	}
	toast := store.Toast()
	if toast == nil || toast.Severity != cart.SeverityWarning {
		t.Fatalf("expected no-longer-valid toast, got %+v", toast)
	}
}

func TestSuccessRefreshesLineWithoutTouchingQuantity(t *testing.T) {
	t.Parallel()

	freshStock := 8
	store, pipeline, _ := newPipelineFixture(func(string, int) (*gateway.UpdateResult, error) {
		line := syncedLine(4, &freshStock)
		line.UnitPrice = "75.00"
		return &gateway.UpdateResult{Line: &line}, nil
	})
	defer pipeline.Close()
	store.Restore([]cart.Line{syncedLine(2, nil)})

	if err := pipeline.RequestQuantity(context.Background(), "line-1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, func() bool {
		line, _ := store.Line("line-1")
		return line.UnitPrice == "75.00"
	}, "refreshed pricing")

	line, _ := store.Line("line-1")
	if line.Quantity != 4 {
		t.Fatalf("refresh must not change quantity, got %d", line.Quantity)
	}
}

func TestDebounceCoalescesRapidEdits(t *testing.T) {
	t.Parallel()

	recorder := &updateRecorder{}
	store, pipeline, _ := newPipelineFixture(func(_ string, quantity int) (*gateway.UpdateResult, error) {
		recorder.record(quantity)
		return &gateway.UpdateResult{}, nil
	})
	defer pipeline.Close()
	store.Restore([]cart.Line{syncedLine(1, nil)})

	ctx := context.Background()
	for _, qty := range []int{2, 3, 4, 5} {
		if err := pipeline.RequestQuantity(ctx, "line-1", qty); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	waitFor(t, func() bool { return recorder.count() >= 1 }, "debounced flush")
	time.Sleep(50 * time.Millisecond)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.calls) != 1 {
		t.Fatalf("expected a single coalesced remote call, got %v", recorder.calls)
	}
	if recorder.calls[0] != 5 {
		t.Fatalf("expected the settled value 5 to reach the network, got %v", recorder.calls)
	}
}

func TestStaleResponseDoesNotOverwriteNewerState(t *testing.T) {
	t.Parallel()

	firstDispatched := make(chan struct{})
	releaseFirst := make(chan struct{})
	clampTo := 1
	var calls int
	var callsMu sync.Mutex

	store, pipeline, _ := newPipelineFixture(func(_ string, quantity int) (*gateway.UpdateResult, error) {
		callsMu.Lock()
		calls++
		call := calls
		callsMu.Unlock()
		if call == 1 {
			close(firstDispatched)
			<-releaseFirst
			// Old answer: would clamp the line down to 1.
			return &gateway.UpdateResult{AvailableStock: &clampTo}, nil
		}
		return &gateway.UpdateResult{}, nil
	})
	defer pipeline.Close()
	store.Restore([]cart.Line{syncedLine(2, nil)})

	ctx := context.Background()
	if err := pipeline.RequestQuantity(ctx, "line-1", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-firstDispatched

	// A newer edit arrives while the first response is still in flight.
	if err := pipeline.RequestQuantity(ctx, "line-1", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, func() bool {
		callsMu.Lock()
		defer callsMu.Unlock()
		return calls == 2
	}, "second flush")

	close(releaseFirst)
	time.Sleep(50 * time.Millisecond)

	line, _ := store.Line("line-1")
	if line.Quantity != 7 {
		t.Fatalf("stale response must not overwrite newer state, got quantity %d", line.Quantity)
	}
}

func TestUnsyncedLineNeverHitsNetwork(t *testing.T) {
	t.Parallel()

	recorder := &updateRecorder{}
	store, pipeline, _ := newPipelineFixture(func(_ string, quantity int) (*gateway.UpdateResult, error) {
		recorder.record(quantity)
		return &gateway.UpdateResult{}, nil
	})
	defer pipeline.Close()
	store.Restore([]cart.Line{
		{CartItemID: "local-1", ProductID: "5", Name: "Boot", UnitPrice: "10", Quantity: 1},
	})

	if err := pipeline.RequestQuantity(context.Background(), "local-1", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if recorder.count() != 0 {
		t.Fatal("unsynced lines must not reach the gateway")
	}
	line, _ := store.Line("local-1")
	if line.Quantity != 3 {
		t.Fatalf("local update must still apply, got %d", line.Quantity)
	}
}

func TestZeroQuantityRemovesWithoutSync(t *testing.T) {
	t.Parallel()

	recorder := &updateRecorder{}
	store, pipeline, _ := newPipelineFixture(func(_ string, quantity int) (*gateway.UpdateResult, error) {
		recorder.record(quantity)
		return &gateway.UpdateResult{}, nil
	})
	defer pipeline.Close()
	store.Restore([]cart.Line{syncedLine(2, nil)})

	if err := pipeline.RequestQuantity(context.Background(), "line-1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if _, ok := store.Line("line-1"); ok {
		t.Fatal("expected line removed on zero quantity")
	}
	if recorder.count() != 0 {
		t.Fatal("removal path must not issue a quantity update")
	}
}

func TestCloseStopsPendingTimers(t *testing.T) {
	t.Parallel()

	recorder := &updateRecorder{}
	store, pipeline, _ := newPipelineFixture(func(_ string, quantity int) (*gateway.UpdateResult, error) {
		recorder.record(quantity)
		return &gateway.UpdateResult{}, nil
	})
	store.Restore([]cart.Line{syncedLine(1, nil)})

	if err := pipeline.RequestQuantity(context.Background(), "line-1", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pipeline.Close()
	time.Sleep(50 * time.Millisecond)

	if recorder.count() != 0 {
		t.Fatal("timers must be cancelled on teardown")
	}
}

func TestRequestQuantityUnknownLine(t *testing.T) {
	t.Parallel()

	_, pipeline, _ := newPipelineFixture(nil)
	defer pipeline.Close()

	err := pipeline.RequestQuantity(context.Background(), "ghost", 2)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
