package cart

import (
	cartstore "github.com/lunastore/storefront/internal/cart"
)

// AddItemRequest is the add-to-cart payload.
type AddItemRequest struct {
	ProductID     string `json:"product_id" validate:"required"`
	VariantID     string `json:"variant_id"`
	Name          string `json:"name" validate:"required"`
	UnitPrice     string `json:"unit_price" validate:"required"`
	OriginalPrice string `json:"original_price"`
	Size          string `json:"size"`
	Color         string `json:"color"`
	Quantity      int    `json:"quantity" validate:"min=0"`
	Stock         *int   `json:"stock"`
}

func (r AddItemRequest) toInput() cartstore.AddInput {
	return cartstore.AddInput{
		ProductID:     r.ProductID,
		VariantID:     r.VariantID,
		Name:          r.Name,
		UnitPrice:     r.UnitPrice,
		OriginalPrice: r.OriginalPrice,
		Size:          r.Size,
		Color:         r.Color,
		Quantity:      r.Quantity,
		Stock:         r.Stock,
	}
}

// UpdateQuantityRequest is the quantity change payload. Zero removes
// the line.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}
