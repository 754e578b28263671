package x402

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// IsBrowserRequest reports whether the request came from an interactive
// browser rather than an API client, based on Accept and User-Agent.
func IsBrowserRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	ua := r.Header.Get("User-Agent")
	return strings.Contains(accept, "text/html") && strings.Contains(ua, "Mozilla")
}

// WriteChallenge responds with 402 Payment Required. API clients get the
// machine-readable challenge body; browsers get a paywall page describing
// the price.
func WriteChallenge(w http.ResponseWriter, r *http.Request, errMsg string, accepts []PaymentRequirements) {
	if IsBrowserRequest(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, paywallHTML(errMsg, accepts))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	json.NewEncoder(w).Encode(PaymentRequiredResponse{
		X402Version: Version,
		Accepts:     accepts,
		Error:       errMsg,
	})
}

// paywallHTML renders a minimal human-readable paywall page.
func paywallHTML(errMsg string, accepts []PaymentRequirements) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Payment Required</title></head>
<body>
<h1>402 Payment Required</h1>
`)
	if errMsg != "" {
		fmt.Fprintf(&sb, "<p>%s</p>\n", html.EscapeString(errMsg))
	}
	for _, req := range accepts {
		fmt.Fprintf(&sb,
			"<p>Pay <strong>%s</strong> USDC to <code>%s</code> on %s for <code>%s</code>.</p>\n",
			html.EscapeString(formatAmount(req.MaxAmountRequired, req.Decimals())),
			html.EscapeString(req.PayTo),
			html.EscapeString(req.Network),
			html.EscapeString(req.Resource),
		)
	}
	sb.WriteString(`<p>Use an x402-capable client to complete the payment.</p>
</body>
</html>`)
	return sb.String()
}

// formatAmount renders base units as a decimal token amount for display.
func formatAmount(baseUnits string, decimals uint8) string {
	n, err := strconv.ParseUint(baseUnits, 10, 64)
	if err != nil {
		return baseUnits
	}
	return strconv.FormatFloat(float64(n)/math.Pow10(int(decimals)), 'f', -1, 64)
}
