package cart

// LineItem is one row of the cart: a quantity of a specific product variant.
// Display fields and price are captured when the row is first added.
type LineItem struct {
	ID          string  `json:"id" validate:"required"`
	ProductID   int64   `json:"productId"`
	VariantID   int64   `json:"variantId"`
	Name        string  `json:"name"`
	VariantName string  `json:"variantName"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Quantity    int     `json:"quantity" validate:"gte=1"`
}

// Candidate is the catalog-supplied input to Add. It is trusted as given.
type Candidate struct {
	ProductID   int64
	VariantID   int64
	Name        string
	VariantName string
	Price       float64
	Image       string
}

// View is the aggregate read model handed to consumers. It is a copy.
type View struct {
	Items      []LineItem `json:"items"`
	TotalItems int        `json:"totalItems"`
	TotalPrice float64    `json:"totalPrice"`
}

func (i LineItem) matches(productID, variantID int64) bool {
	return i.ProductID == productID && i.VariantID == variantID
}

func newLineItem(id string, c Candidate) LineItem {
	return LineItem{
		ID:          id,
		ProductID:   c.ProductID,
		VariantID:   c.VariantID,
		Name:        c.Name,
		VariantName: c.VariantName,
		Price:       c.Price,
		Image:       c.Image,
		Quantity:    1,
	}
}

func totalItems(items []LineItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func totalPrice(items []LineItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
