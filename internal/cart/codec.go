package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrMalformed wraps every decode failure of a persisted cart.
var ErrMalformed = errors.New("malformed cart data")

// Encode serializes items as a JSON array. An empty cart encodes as [].
func Encode(items []LineItem) (string, error) {
	if items == nil {
		items = []LineItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode cart: %w", err)
	}
	return string(raw), nil
}

// Decode parses a persisted cart and checks it against the cart invariants.
// Unknown fields are ignored so older readers accept additive changes.
func Decode(raw string) ([]LineItem, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))

	var items []LineItem
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after cart array", ErrMalformed)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: expected an array", ErrMalformed)
	}

	ids := make(map[string]struct{}, len(items))
	type pair struct{ product, variant int64 }
	pairs := make(map[pair]struct{}, len(items))
	for i, item := range items {
		if err := validate.Struct(item); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrMalformed, i, err)
		}
		if _, dup := ids[item.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrMalformed, item.ID)
		}
		ids[item.ID] = struct{}{}
		key := pair{item.ProductID, item.VariantID}
		if _, dup := pairs[key]; dup {
			return nil, fmt.Errorf("%w: duplicate variant %d/%d", ErrMalformed, item.ProductID, item.VariantID)
		}
		pairs[key] = struct{}{}
	}
	return items, nil
}
