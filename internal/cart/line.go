package cart

// StockStatus classifies a line against the inventory the backend last
// reported for it.
type StockStatus string

const (
	StockAvailable    StockStatus = "available"
	StockInsufficient StockStatus = "insufficient"
	StockOut          StockStatus = "out_of_stock"
)

// Line is one product+variant+size entry in the cart. CartItemID is
// generated locally and stable across updates; BackendID is set once the
// line exists in the remote cart and is the synced/unsynced discriminant.
type Line struct {
	CartItemID string `json:"cart_item_id"`
	ProductID  string `json:"product_id"`
	VariantID  string `json:"variant_id,omitempty"`
	BackendID  string `json:"backend_id,omitempty"`

	Name          string `json:"name"`
	UnitPrice     string `json:"unit_price"`
	OriginalPrice string `json:"original_price,omitempty"`
	Quantity      int    `json:"quantity"`
	Size          string `json:"size,omitempty"`
	Color         string `json:"color,omitempty"`

	Stock       *int        `json:"stock,omitempty"`
	StockStatus StockStatus `json:"stock_status,omitempty"`
	CanCheckout bool        `json:"can_checkout"`
	InStock     bool        `json:"in_stock"`
}

// Synced reports whether the line is reflected in the remote cart.
func (l Line) Synced() bool {
	return l.BackendID != ""
}

// Matches reports whether two lines represent the same product entry:
// same product, same size, and same variant when both sides carry one.
func (l Line) Matches(other Line) bool {
	if l.ProductID != other.ProductID {
		return false
	}
	if l.VariantID != "" && other.VariantID != "" && l.VariantID != other.VariantID {
		return false
	}
	return l.Size == other.Size
}

// Key identifies the (product, variant, size) combination for duplicate
// detection after a merge.
func (l Line) Key() string {
	return l.ProductID + "|" + l.VariantID + "|" + l.Size
}

// ClampToStock caps the quantity at the known stock. It reports whether a
// clamp was applied.
func (l *Line) ClampToStock() bool {
	if l.Stock == nil || l.Quantity <= *l.Stock {
		return false
	}
	l.Quantity = *l.Stock
	return true
}
