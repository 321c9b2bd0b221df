package cart

import (
	"fmt"
	"time"
)

// newItemID derives a row id from the variant and the insertion time. A suffix
// is appended while the id is still held by a live row.
func newItemID(productID, variantID int64, at time.Time, taken func(string) bool) string {
	base := fmt.Sprintf("%d-%d-%d", productID, variantID, at.UnixMilli())
	id := base
	for n := 1; taken(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}
