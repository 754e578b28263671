// Package versioning negotiates the API version of a request and tags
// responses with the version that served them. v1 is the only released
// version; the machinery exists so a future v2 can ship without breaking
// current clients.
package versioning

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// Version is an API major version.
type Version int

const (
	V1 Version = 1

	// DefaultVersion serves requests that do not ask for a version.
	DefaultVersion = V1
)

func (v Version) String() string {
	if v <= 0 {
		v = DefaultVersion
	}
	return "v" + strconv.Itoa(int(v))
}

type contextKey struct{}

// FromContext returns the negotiated version, defaulting to DefaultVersion.
func FromContext(ctx context.Context) Version {
	if v, ok := ctx.Value(contextKey{}).(Version); ok {
		return v
	}
	return DefaultVersion
}

// WithVersion stores the negotiated version on the context.
func WithVersion(ctx context.Context, v Version) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

// Negotiation resolves the requested API version from the X-API-Version
// header or a vendor media type (application/vnd.ragpay.v1+json), stores it
// on the request context, and echoes it in X-API-Version.
func Negotiation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := negotiate(r)
		w.Header().Set("X-API-Version", v.String())
		w.Header().Add("Vary", "Accept")
		next.ServeHTTP(w, r.WithContext(WithVersion(r.Context(), v)))
	})
}

func negotiate(r *http.Request) Version {
	if header := r.Header.Get("X-API-Version"); header != "" {
		if v := parse(header); v > 0 {
			return v
		}
	}
	accept := r.Header.Get("Accept")
	if idx := strings.Index(accept, "application/vnd.ragpay."); idx >= 0 {
		rest := accept[idx+len("application/vnd.ragpay."):]
		if cut := strings.IndexAny(rest, "+;, "); cut >= 0 {
			rest = rest[:cut]
		}
		if v := parse(rest); v > 0 {
			return v
		}
	}
	return DefaultVersion
}

// parse accepts "1", "v1", or "V1". Unknown versions fall back to zero so the
// caller can apply the default.
func parse(s string) Version {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "v")
	if s == "1" {
		return V1
	}
	return 0
}
