package httpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ragpay/server/internal/httputil"
	"github.com/ragpay/server/internal/logger"
)

type contextKey string

const walletContextKey contextKey = "wallet"

// requireAuth verifies the Solana signed bearer token and stores the
// authenticated wallet address in the request context. The token must be
// bound to the exact URL being requested.
func (h handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet, err := h.verifier.Verify(r.Header.Get("Authorization"), httputil.RequestURL(r))
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Warn().
				Err(err).
				Str("path", r.URL.Path).
				Msg("auth.rejected")
			writeDetail(w, http.StatusUnauthorized, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), walletContextKey, wallet)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// walletFromContext returns the wallet set by requireAuth.
func walletFromContext(ctx context.Context) string {
	wallet, _ := ctx.Value(walletContextKey).(string)
	return wallet
}

// writeDetail writes a {"detail": ...} error body, the shape auth failures
// are documented to use.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
