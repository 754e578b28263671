package versioning

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNegotiation(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    Version
	}{
		{"no headers", nil, V1},
		{"explicit header", map[string]string{"X-API-Version": "1"}, V1},
		{"explicit header with prefix", map[string]string{"X-API-Version": "v1"}, V1},
		{"vendor media type", map[string]string{"Accept": "application/vnd.ragpay.v1+json"}, V1},
		{"unknown version falls back", map[string]string{"X-API-Version": "9"}, V1},
		{"plain accept ignored", map[string]string{"Accept": "application/json"}, V1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Version
			handler := Negotiation(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = FromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got != tt.want {
				t.Errorf("negotiated version = %v, want %v", got, tt.want)
			}
			if header := rec.Header().Get("X-API-Version"); header != tt.want.String() {
				t.Errorf("X-API-Version = %q, want %q", header, tt.want)
			}
		})
	}
}

func TestVersionString(t *testing.T) {
	if V1.String() != "v1" {
		t.Errorf("V1.String() = %q, want v1", V1.String())
	}
	if Version(0).String() != "v1" {
		t.Errorf("zero version should render as the default, got %q", Version(0).String())
	}
}
