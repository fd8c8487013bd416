package gateway

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/lunastore/storefront/internal/cart"
)

// Snapshot is the authoritative remote cart as of one fetch. It is never
// mutated in place; reconciliation always merges it into local state.
type Snapshot struct {
	Lines             []cart.Line
	CanCheckout       bool
	CheckoutMessage   string
	InvalidItemsCount int
}

// UpdateResult is the backend's answer to a quantity change. Removed
// means the item was silently dropped (invalid variant). AvailableStock
// is set when the requested quantity exceeded inventory, in which case
// Line carries the clamped authoritative record.
type UpdateResult struct {
	Removed        bool
	AvailableStock *int
	Line           *cart.Line
}

// RemoveResult carries the optional confirmation strings from a delete.
type RemoveResult struct {
	Message     string
	ProductName string
}

// The backend represents cart lines with inconsistent field shapes
// (numeric vs string ids, bare size names vs size objects). Everything
// is normalized into cart.Line at this boundary so business logic never
// branches on wire shape.

type wireSnapshot struct {
	Items             []wireLine `json:"items"`
	CanCheckout       *bool      `json:"can_checkout"`
	CheckoutMessage   string     `json:"checkout_message"`
	InvalidItemsCount int        `json:"invalid_items_count"`
}

type wireLine struct {
	ID            flexString `json:"id"`
	ProductID     flexString `json:"product_id"`
	VariantID     flexString `json:"variant_id"`
	Name          string     `json:"name"`
	Price         flexString `json:"price"`
	OriginalPrice flexString `json:"original_price"`
	Quantity      int        `json:"quantity"`
	Size          wireSize   `json:"size"`
	Color         string     `json:"color"`
	Stock         *int       `json:"stock"`
	StockStatus   string     `json:"stock_status"`
	CanCheckout   *bool      `json:"can_checkout"`
	InStock       *bool      `json:"in_stock"`
}

type wireUpdateResult struct {
	Removed        bool      `json:"removed"`
	AvailableStock *int      `json:"available_stock"`
	Data           *wireLine `json:"data"`
	Message        string    `json:"message"`
}

type wireRemoveResult struct {
	Message     string `json:"message"`
	ProductName string `json:"product_name"`
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// wireSize decodes a size sent as a bare string, a number, or an object
// with id/name fields. The name wins when both are present.
type wireSize string

func (s *wireSize) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '{' {
		var obj struct {
			ID   flexString `json:"id"`
			Name flexString `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if obj.Name != "" {
			*s = wireSize(obj.Name)
		} else {
			*s = wireSize(obj.ID)
		}
		return nil
	}
	var f flexString
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*s = wireSize(f)
	return nil
}

func (w wireLine) normalize() cart.Line {
	line := cart.Line{
		CartItemID:    uuid.NewString(),
		BackendID:     string(w.ID),
		ProductID:     string(w.ProductID),
		VariantID:     string(w.VariantID),
		Name:          w.Name,
		UnitPrice:     string(w.Price),
		OriginalPrice: string(w.OriginalPrice),
		Quantity:      w.Quantity,
		Size:          string(w.Size),
		Color:         w.Color,
		Stock:         w.Stock,
		CanCheckout:   true,
		InStock:       true,
	}
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	switch {
	case w.StockStatus != "":
		line.StockStatus = cart.StockStatus(w.StockStatus)
	case w.Stock != nil && *w.Stock <= 0:
		line.StockStatus = cart.StockOut
	default:
		line.StockStatus = cart.StockAvailable
	}
	if w.CanCheckout != nil {
		line.CanCheckout = *w.CanCheckout
	}
	if w.InStock != nil {
		line.InStock = *w.InStock
	} else if w.Stock != nil {
		line.InStock = *w.Stock > 0
	}
	return line
}

func (w wireSnapshot) normalize() *Snapshot {
	snap := &Snapshot{
		CanCheckout:       true,
		CheckoutMessage:   w.CheckoutMessage,
		InvalidItemsCount: w.InvalidItemsCount,
	}
	if w.CanCheckout != nil {
		snap.CanCheckout = *w.CanCheckout
	}
	for _, item := range w.Items {
		snap.Lines = append(snap.Lines, item.normalize())
	}
	return snap
}
