// Package identity provides anonymous per-browser-profile identity.
package identity

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	ProfileCookieName   = "techassist_profile"
	ProfileHeaderName   = "X-TechAssist-Profile"
	profileCookieMaxAge = 30 * 24 * time.Hour
)

type contextKey int

const profileIDKey contextKey = iota

// ProfileIDFromContext extracts the profile ID from the request context.
func ProfileIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(profileIDKey).(string); ok {
		return v
	}
	return ""
}

// WithProfileID returns a copy of ctx carrying profileID.
func WithProfileID(ctx context.Context, profileID string) context.Context {
	return context.WithValue(ctx, profileIDKey, profileID)
}

func isValidProfileID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

func profileIDFromRequest(r *http.Request) (string, bool) {
	if id := r.Header.Get(ProfileHeaderName); isValidProfileID(id) {
		return id, true
	}
	if c, err := r.Cookie(ProfileCookieName); err == nil && isValidProfileID(c.Value) {
		return c.Value, true
	}
	return "", false
}

func setProfileCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     ProfileCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(profileCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(profileCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// Middleware assigns every browser profile a stable anonymous ID, carried
// in a cookie (or the profile header for non-browser clients), and injects
// it into the request context.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := profileIDFromRequest(r)
			if !ok {
				id = uuid.NewString()
			}
			setProfileCookie(w, id, isDev)
			next.ServeHTTP(w, r.WithContext(WithProfileID(r.Context(), id)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
