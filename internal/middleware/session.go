package middleware

import (
	"context"
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/hlog"

	"github.com/qaderichat/backend/internal/metrics"
)

// SessionCookie carries the anonymous browser identity.
const SessionCookie = "qaderichat_session"

const (
	sessionKeyLength = 32
	sessionMaxAge    = 365 * 24 * time.Hour
)

type sessionKeyCtx struct{}

// SessionKey returns the anonymous identity attached by Session.
func SessionKey(ctx context.Context) string {
	key, _ := ctx.Value(sessionKeyCtx{}).(string)
	return key
}

// WithSessionKey attaches key to ctx.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyCtx{}, key)
}

// Session makes sure every request carries an anonymous session key,
// issuing a fresh cookie when the browser has none or a malformed one.
func Session(secure bool, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if cookie, err := r.Cookie(SessionCookie); err == nil && validSessionKey(cookie.Value) {
				key = cookie.Value
			}

			if key == "" {
				issued, err := gonanoid.New(sessionKeyLength)
				if err != nil {
					hlog.FromRequest(r).Error().Err(err).Msg("failed to issue session key")
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				key = issued
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    key,
					Path:     "/",
					MaxAge:   int(sessionMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
				m.SessionIssued()
			}

			next.ServeHTTP(w, r.WithContext(WithSessionKey(r.Context(), key)))
		})
	}
}

// validSessionKey accepts keys drawn from the nanoid URL-safe alphabet.
func validSessionKey(key string) bool {
	if len(key) < 16 || len(key) > 64 {
		return false
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
