package cart

import "github.com/angelmondragon/cartstore/internal/cart"

// AddItemResponse returns the affected row next to the refreshed cart.
type AddItemResponse struct {
	Item cart.LineItem `json:"item"`
	Cart cart.View     `json:"cart"`
}
