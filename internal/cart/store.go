package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/lunastore/storefront/pkg/errors"
	"github.com/lunastore/storefront/pkg/logger"
)

// Severity grades a toast notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Toast is the transient notification slot. At most one is active; every
// mutating operation may overwrite it.
type Toast struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Token    string   `json:"token"`
}

// Persister receives the full line list after every mutation so cart
// state survives a restart. Failures are logged, never surfaced: the
// in-memory store stays authoritative for the UI.
type Persister interface {
	SaveLines(ctx context.Context, lines []Line) error
}

// AddInput carries everything needed to add a product to the cart.
type AddInput struct {
	ProductID     string
	VariantID     string
	Name          string
	UnitPrice     string
	OriginalPrice string
	Size          string
	Color         string
	Quantity      int
	Stock         *int
}

// Store is the single source of truth for what the UI renders as the
// cart, independent of network availability. All writes replace the line
// list wholesale under the mutex.
type Store struct {
	mu              sync.Mutex
	lines           []Line
	toast           *Toast
	canCheckout     bool
	checkoutMessage string
	invalidItems    int

	persister     Persister
	logg          *logger.Logger
	onCountChange func(count int)
}

// NewStore builds a cart store with permissive checkout defaults.
func NewStore(persister Persister, logg *logger.Logger) *Store {
	return &Store{
		persister:   persister,
		logg:        logg,
		canCheckout: true,
	}
}

// OnCountChange registers a callback fired whenever the number of lines
// changes. Used by the reconciliation orchestrator to schedule refreshes.
func (s *Store) OnCountChange(fn func(count int)) {
	s.mu.Lock()
	s.onCountChange = fn
	s.mu.Unlock()
}

// Restore seeds the store from persisted state without emitting a toast
// or re-persisting.
func (s *Store) Restore(lines []Line) {
	s.mu.Lock()
	s.lines = cloneLines(lines)
	for i := range s.lines {
		s.lines[i].ClampToStock()
	}
	s.mu.Unlock()
}

// AddItem merges into an existing line matching product+size+variant or
// creates a new line. A zero quantity defaults to one.
func (s *Store) AddItem(ctx context.Context, input AddInput) (Line, error) {
	if input.ProductID == "" {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity < 0 {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}

	probe := Line{ProductID: input.ProductID, VariantID: input.VariantID, Size: input.Size}

	s.mu.Lock()
	var result Line
	merged := false
	for i := range s.lines {
		if s.lines[i].Matches(probe) {
			s.lines[i].Quantity += qty
			s.lines[i].ClampToStock()
			result = s.lines[i]
			merged = true
			break
		}
	}
	if !merged {
		line := Line{
			CartItemID:    uuid.NewString(),
			ProductID:     input.ProductID,
			VariantID:     input.VariantID,
			Name:          input.Name,
			UnitPrice:     input.UnitPrice,
			OriginalPrice: input.OriginalPrice,
			Quantity:      qty,
			Size:          input.Size,
			Color:         input.Color,
			Stock:         copyIntPtr(input.Stock),
			StockStatus:   StockAvailable,
			CanCheckout:   true,
			InStock:       true,
		}
		if line.Stock != nil && *line.Stock <= 0 {
			line.StockStatus = StockOut
			line.CanCheckout = false
			line.InStock = false
		}
		line.ClampToStock()
		s.lines = append(s.lines, line)
		result = line
	}

	if merged {
		s.setToastLocked(result.Name+" quantity updated", SeveritySuccess)
	} else {
		s.setToastLocked(result.Name+" added to cart", SeveritySuccess)
	}
	snapshot, countChanged := s.afterMutationLocked(!merged)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.notifyCount(countChanged, len(snapshot))
	return result, nil
}

// UpdateQuantity replaces a line's quantity in place. A non-positive
// quantity removes the line. Stock known to the store still clamps.
func (s *Store) UpdateQuantity(ctx context.Context, cartItemID string, quantity int) error {
	if quantity <= 0 {
		s.RemoveItem(ctx, cartItemID)
		return nil
	}

	s.mu.Lock()
	found := false
	for i := range s.lines {
		if s.lines[i].CartItemID == cartItemID {
			s.lines[i].Quantity = quantity
			s.lines[i].ClampToStock()
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	snapshot, _ := s.afterMutationLocked(false)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	return nil
}

// RemoveItem deletes the line. Removing an absent id is a no-op.
func (s *Store) RemoveItem(ctx context.Context, cartItemID string) {
	s.mu.Lock()
	kept := s.lines[:0]
	removed := false
	for _, line := range s.lines {
		if line.CartItemID == cartItemID {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		s.mu.Unlock()
		return
	}
	s.lines = kept
	snapshot, countChanged := s.afterMutationLocked(true)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.notifyCount(countChanged, len(snapshot))
}

// Clear empties the cart, used after a successful checkout.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	hadLines := len(s.lines) > 0
	s.lines = nil
	s.canCheckout = true
	s.checkoutMessage = ""
	s.invalidItems = 0
	snapshot, _ := s.afterMutationLocked(hadLines)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.notifyCount(hadLines, 0)
}

// Replace swaps the entire line list, the write discipline used by
// reconciliation.
func (s *Store) Replace(ctx context.Context, lines []Line) {
	s.mu.Lock()
	previous := len(s.lines)
	s.lines = cloneLines(lines)
	snapshot, _ := s.afterMutationLocked(previous != len(s.lines))
	countChanged := previous != len(snapshot)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.notifyCount(countChanged, len(snapshot))
}

// RefreshFromRemote copies authoritative price/stock/eligibility fields
// onto the synced line with the given backend id, leaving quantity alone.
func (s *Store) RefreshFromRemote(ctx context.Context, backendID string, remote Line) {
	if backendID == "" {
		return
	}
	s.mu.Lock()
	updated := false
	for i := range s.lines {
		if s.lines[i].BackendID != backendID {
			continue
		}
		applyRemoteFields(&s.lines[i], remote)
		updated = true
		break
	}
	if !updated {
		s.mu.Unlock()
		return
	}
	snapshot, _ := s.afterMutationLocked(false)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
}

// Lines returns a copy of the current line list.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.lines)
}

// Line looks up a single line by its local id.
func (s *Store) Line(cartItemID string) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range s.lines {
		if line.CartItemID == cartItemID {
			return line, true
		}
	}
	return Line{}, false
}

// LineByBackendID looks up a synced line by its remote id.
func (s *Store) LineByBackendID(backendID string) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if backendID == "" {
		return Line{}, false
	}
	for _, line := range s.lines {
		if line.BackendID == backendID {
			return line, true
		}
	}
	return Line{}, false
}

// HasSyncedLines reports whether any line carries a backend id.
func (s *Store) HasSyncedLines() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range s.lines {
		if line.Synced() {
			return true
		}
	}
	return false
}

// TotalPrice sums unit price times quantity over all lines. Lines whose
// price does not parse as a finite number contribute zero; malformed
// upstream data must not break the total.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, line := range s.lines {
		if line.Quantity < 0 {
			continue
		}
		price, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// TotalItemCount sums the quantities of all lines.
func (s *Store) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, line := range s.lines {
		count += line.Quantity
	}
	return count
}

// SetToast overwrites the toast slot.
func (s *Store) SetToast(message string, severity Severity) {
	s.mu.Lock()
	s.setToastLocked(message, severity)
	s.mu.Unlock()
}

// Toast returns the active toast, if any.
func (s *Store) Toast() *Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toast == nil {
		return nil
	}
	copied := *s.toast
	return &copied
}

// ClearToast empties the toast slot.
func (s *Store) ClearToast() {
	s.mu.Lock()
	s.toast = nil
	s.mu.Unlock()
}

// SetFlags records the cart-wide eligibility verdict from the backend.
func (s *Store) SetFlags(canCheckout bool, message string, invalidItems int) {
	s.mu.Lock()
	s.canCheckout = canCheckout
	s.checkoutMessage = message
	s.invalidItems = invalidItems
	s.mu.Unlock()
}

// ResetFlags restores the permissive defaults used when the backend
// cannot be consulted.
func (s *Store) ResetFlags() {
	s.SetFlags(true, "", 0)
}

// Flags returns the cart-wide eligibility verdict.
func (s *Store) Flags() (canCheckout bool, message string, invalidItems int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canCheckout, s.checkoutMessage, s.invalidItems
}

func (s *Store) setToastLocked(message string, severity Severity) {
	s.toast = &Toast{
		Message:  message,
		Severity: severity,
		Token:    uuid.NewString(),
	}
}

func (s *Store) afterMutationLocked(countChanged bool) ([]Line, bool) {
	return cloneLines(s.lines), countChanged
}

func (s *Store) persist(ctx context.Context, lines []Line) {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveLines(ctx, lines); err != nil && s.logg != nil {
		s.logg.Error(ctx, "cart.persist_failed", err)
	}
}

func (s *Store) notifyCount(changed bool, count int) {
	if !changed {
		return
	}
	s.mu.Lock()
	fn := s.onCountChange
	s.mu.Unlock()
	if fn != nil {
		fn(count)
	}
}

func applyRemoteFields(local *Line, remote Line) {
	if remote.UnitPrice != "" {
		local.UnitPrice = remote.UnitPrice
	}
	if remote.OriginalPrice != "" {
		local.OriginalPrice = remote.OriginalPrice
	}
	if remote.Stock != nil {
		local.Stock = copyIntPtr(remote.Stock)
	}
	if remote.StockStatus != "" {
		local.StockStatus = remote.StockStatus
	}
	local.CanCheckout = remote.CanCheckout
	local.InStock = remote.InStock
}

func cloneLines(lines []Line) []Line {
	if len(lines) == 0 {
		return nil
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	for i := range out {
		out[i].Stock = copyIntPtr(out[i].Stock)
	}
	return out
}

func copyIntPtr(src *int) *int {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}
