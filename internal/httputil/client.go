package httputil

import (
	"net/http"
	"time"
)

// NewClient returns an HTTP client with the given timeout and a transport
// tuned for repeated calls to a small set of hosts, which is the shape of
// facilitator and embedding traffic here. Idle connections stay pooled so
// back-to-back requests reuse them instead of re-dialing.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
