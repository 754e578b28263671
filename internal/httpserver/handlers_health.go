package httpserver

import (
	"net/http"

	"github.com/ragpay/server/pkg/responders"
)

// health handles GET /health.
func (h handlers) health(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
