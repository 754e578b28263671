package httputil

import (
	"net/http"
	"strings"
)

// RequestURL reconstructs the absolute URL the client requested. Forwarding
// headers from a fronting proxy take precedence over the connection-level
// scheme and host, so the URL matches what the client signed and what the
// payment challenge advertises.
func RequestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}

	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}

	return scheme + "://" + host + r.URL.RequestURI()
}
