package cart

import (
	cartstore "github.com/lunastore/storefront/internal/cart"
)

type cartView struct {
	Lines             []cartstore.Line `json:"lines"`
	TotalPrice        string           `json:"total_price"`
	TotalItemCount    int              `json:"total_item_count"`
	CanCheckout       bool             `json:"can_checkout"`
	CheckoutMessage   string           `json:"checkout_message,omitempty"`
	InvalidItemsCount int              `json:"invalid_items_count"`
	Toast             *cartstore.Toast `json:"toast,omitempty"`
}

func newCartView(store *cartstore.Store) cartView {
	lines := store.Lines()
	if lines == nil {
		lines = []cartstore.Line{}
	}
	canCheckout, message, invalid := store.Flags()
	return cartView{
		Lines:             lines,
		TotalPrice:        store.TotalPrice().StringFixed(2),
		TotalItemCount:    store.TotalItemCount(),
		CanCheckout:       canCheckout,
		CheckoutMessage:   message,
		InvalidItemsCount: invalid,
		Toast:             store.Toast(),
	}
}
