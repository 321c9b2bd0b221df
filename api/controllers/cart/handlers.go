package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/cartstore/api/responses"
	"github.com/angelmondragon/cartstore/api/validators"
	cartsvc "github.com/angelmondragon/cartstore/internal/cart"
	pkgerrors "github.com/angelmondragon/cartstore/pkg/errors"
	"github.com/angelmondragon/cartstore/pkg/logger"
)

// CartView returns the session's items and totals.
func CartView(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := cartsvc.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store.View())
	}
}

// CartAddItem adds one unit of the posted variant.
func CartAddItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := cartsvc.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload AddItemRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item := store.Add(r.Context(), payload.toCandidate())
		status := http.StatusOK
		if item.Quantity == 1 {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, AddItemResponse{Item: item, Cart: store.View()})
	}
}

// CartUpdateQuantity sets an item's quantity. Quantities below 1 and unknown
// items leave the cart untouched.
func CartUpdateQuantity(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := cartsvc.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload UpdateQuantityRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store.UpdateQuantity(r.Context(), itemID, *payload.Quantity)
		responses.WriteSuccess(w, store.View())
	}
}

// CartRemoveItem drops an item. Unknown items are ignored.
func CartRemoveItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := cartsvc.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store.Remove(r.Context(), itemID)
		responses.WriteSuccess(w, store.View())
	}
}

// CartClear empties the cart, e.g. after checkout.
func CartClear(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := cartsvc.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store.Clear(r.Context())
		responses.WriteSuccess(w, store.View())
	}
}

func itemIDParam(r *http.Request) (string, error) {
	itemID := chi.URLParam(r, "itemId")
	if itemID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	return itemID, nil
}
