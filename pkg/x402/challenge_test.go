package x402

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func challengeRequirements() []PaymentRequirements {
	return []PaymentRequirements{{
		Scheme:            SchemeExact,
		Network:           NetworkMainnet,
		MaxAmountRequired: "150000",
		Resource:          "http://localhost/docs/search",
		PayTo:             "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		Asset:             "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		MaxTimeoutSeconds: 60,
	}}
}

func TestWriteChallengeJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/docs/search", nil)
	r.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()

	WriteChallenge(w, r, "No X-PAYMENT header provided", challengeRequirements())

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body PaymentRequiredResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parsing body: %v", err)
	}
	if body.X402Version != Version || len(body.Accepts) != 1 {
		t.Errorf("body = %+v", body)
	}
	if body.Error != "No X-PAYMENT header provided" {
		t.Errorf("error = %q", body.Error)
	}
	if body.Accepts[0].MaxAmountRequired != "150000" {
		t.Errorf("maxAmountRequired = %q", body.Accepts[0].MaxAmountRequired)
	}
}

func TestWriteChallengeBrowserHTML(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/docs/search", nil)
	r.Header.Set("Accept", "text/html,application/xhtml+xml")
	r.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	w := httptest.NewRecorder()

	WriteChallenge(w, r, "payment required", challengeRequirements())

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "402 Payment Required") {
		t.Errorf("paywall page missing title: %q", body)
	}
	if !strings.Contains(body, "0.15") {
		t.Errorf("paywall page missing human amount: %q", body)
	}
}

func TestFormatAmountHonorsDecimals(t *testing.T) {
	tests := []struct {
		baseUnits string
		decimals  uint8
		want      string
	}{
		{"150000", 6, "0.15"},
		{"150000", 8, "0.0015"},
		{"5", 0, "5"},
		{"not-a-number", 6, "not-a-number"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.baseUnits, tt.decimals); got != tt.want {
			t.Errorf("formatAmount(%q, %d) = %q, want %q", tt.baseUnits, tt.decimals, got, tt.want)
		}
	}
}

func TestPaywallHTMLUsesAdvertisedDecimals(t *testing.T) {
	reqs := challengeRequirements()
	reqs[0].Extra = map[string]string{"decimals": "8"}

	r := httptest.NewRequest(http.MethodGet, "/docs/search", nil)
	r.Header.Set("Accept", "text/html")
	r.Header.Set("User-Agent", "Mozilla/5.0")
	w := httptest.NewRecorder()

	WriteChallenge(w, r, "", reqs)

	if body := w.Body.String(); !strings.Contains(body, "0.0015") {
		t.Errorf("paywall page ignored advertised decimals: %q", body)
	}
}

func TestRequirementsDecimalsDefault(t *testing.T) {
	if d := (PaymentRequirements{}).Decimals(); d != 6 {
		t.Errorf("Decimals() = %d, want 6 by default", d)
	}
	withExtra := PaymentRequirements{Extra: map[string]string{"decimals": "9"}}
	if d := withExtra.Decimals(); d != 9 {
		t.Errorf("Decimals() = %d, want 9", d)
	}
}

func TestIsBrowserRequest(t *testing.T) {
	api := httptest.NewRequest(http.MethodGet, "/", nil)
	api.Header.Set("Accept", "application/json")
	api.Header.Set("User-Agent", "curl/8.0")
	if IsBrowserRequest(api) {
		t.Error("API client detected as browser")
	}

	browser := httptest.NewRequest(http.MethodGet, "/", nil)
	browser.Header.Set("Accept", "text/html")
	browser.Header.Set("User-Agent", "Mozilla/5.0")
	if !IsBrowserRequest(browser) {
		t.Error("browser not detected")
	}
}
