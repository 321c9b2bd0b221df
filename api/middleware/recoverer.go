package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/cartstore/api/responses"
	pkgerrors "github.com/angelmondragon/cartstore/pkg/errors"
	"github.com/angelmondragon/cartstore/pkg/logger"
)

// Recoverer turns panics into error envelopes. Typed errors keep their code, so a
// handler calling cart.MustFromContext outside a session still reports
// CART_SCOPE_MISSING.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{"panic": fmt.Sprint(rec)})
				}
				var err error
				if recErr, ok := rec.(error); ok {
					err = recErr
				} else {
					err = fmt.Errorf("panic: %v", rec)
				}
				if pkgerrors.As(err) == nil {
					err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic")
				}
				responses.WriteError(ctx, logg, w, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
