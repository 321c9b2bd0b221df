package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cartstore/api/responses"
	"github.com/angelmondragon/cartstore/internal/cart"
	"github.com/angelmondragon/cartstore/pkg/logger"
)

const (
	SessionHeader = "X-Cart-Session"
	SessionCookie = "cart_session"

	sessionCookieMaxAge = 30 * 24 * time.Hour
)

// StoreOpener hands out the cart store of a session.
type StoreOpener interface {
	Open(ctx context.Context, sessionID string) (*cart.Store, error)
}

// CartSession resolves the caller's session, opens its cart and places it in
// the request scope. A new session id is minted when the request carries none.
func CartSession(opener StoreOpener, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := sessionIDFromRequest(r)
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}

			store, err := opener.Open(ctx, sessionID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			w.Header().Set(SessionHeader, sessionID)
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   int(sessionCookieMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})

			next.ServeHTTP(w, r.WithContext(cart.WithStore(ctx, store)))
		})
	}
}

func sessionIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
