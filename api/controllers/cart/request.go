package cart

import "github.com/angelmondragon/cartstore/internal/cart"

// AddItemRequest is the catalog candidate posted by the storefront. Presence is
// checked here; catalog correctness is the caller's responsibility.
type AddItemRequest struct {
	ProductID   *int64   `json:"productId" validate:"required"`
	VariantID   *int64   `json:"variantId" validate:"required"`
	Name        string   `json:"name" validate:"max=512"`
	VariantName string   `json:"variantName" validate:"max=512"`
	Price       *float64 `json:"price" validate:"required"`
	Image       string   `json:"image" validate:"max=2048"`
}

type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func (r AddItemRequest) toCandidate() cart.Candidate {
	return cart.Candidate{
		ProductID:   *r.ProductID,
		VariantID:   *r.VariantID,
		Name:        r.Name,
		VariantName: r.VariantName,
		Price:       *r.Price,
		Image:       r.Image,
	}
}
