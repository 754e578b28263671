package x402

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testPayment() PaymentPayload {
	return PaymentPayload{
		X402Version: Version,
		Scheme:      SchemeExact,
		Network:     NetworkDevnet,
		Payload:     SolanaPayload{Transaction: "dHg="},
	}
}

func TestFacilitatorVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("path = %s, want /verify", r.URL.Path)
		}
		var req facilitatorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.X402Version != Version {
			t.Errorf("x402Version = %d, want %d", req.X402Version, Version)
		}
		if req.PaymentPayload.Payload.Transaction == "" {
			t.Error("request missing payment transaction")
		}
		if req.PaymentRequirements.PayTo == "" {
			t.Error("request missing payment requirements")
		}
		json.NewEncoder(w).Encode(VerifyResponse{IsValid: true, Payer: "wallet123"})
	}))
	defer srv.Close()

	fc := NewFacilitatorClient(srv.URL, 5*time.Second, nil)
	resp, err := fc.Verify(context.Background(), testPayment(), PaymentRequirements{PayTo: "recipient"})
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if !resp.IsValid || resp.Payer != "wallet123" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestFacilitatorVerifyInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(VerifyResponse{IsValid: false, InvalidReason: "insufficient_funds"})
	}))
	defer srv.Close()

	fc := NewFacilitatorClient(srv.URL, 5*time.Second, nil)
	resp, err := fc.Verify(context.Background(), testPayment(), PaymentRequirements{})
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if resp.IsValid || resp.InvalidReason != "insufficient_funds" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestFacilitatorVerifyFailureNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	fc := NewFacilitatorClient(srv.URL, 5*time.Second, nil)
	if _, err := fc.Verify(context.Background(), testPayment(), PaymentRequirements{}); err == nil {
		t.Fatal("Verify() succeeded on HTTP 500")
	}
	// A failed verify surfaces as a fresh 402; the client re-submits, so the
	// server must not add its own retries.
	if calls != 1 {
		t.Errorf("verify called %d times, want exactly 1", calls)
	}
}

func TestFacilitatorSettle(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/settle" {
			t.Errorf("path = %s, want /settle", r.URL.Path)
		}
		json.NewEncoder(w).Encode(SettleResponse{
			Success:     true,
			Transaction: "5Signature",
			Network:     NetworkDevnet,
			Payer:       "wallet123",
		})
	}))
	defer srv.Close()

	fc := NewFacilitatorClient(srv.URL, 5*time.Second, nil)
	resp, err := fc.Settle(context.Background(), testPayment(), PaymentRequirements{})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}
	if !resp.Success || resp.Transaction != "5Signature" {
		t.Errorf("resp = %+v", resp)
	}
	if calls != 1 {
		t.Errorf("settle called %d times, want exactly 1", calls)
	}
}

func TestFacilitatorErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	fc := NewFacilitatorClient(srv.URL, 5*time.Second, nil)
	if _, err := fc.Settle(context.Background(), testPayment(), PaymentRequirements{}); err == nil {
		t.Fatal("Settle() succeeded on HTTP 400")
	}
}

func TestFacilitatorTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("path = %s, want /verify", r.URL.Path)
		}
		json.NewEncoder(w).Encode(VerifyResponse{IsValid: true})
	}))
	defer srv.Close()

	fc := NewFacilitatorClient(srv.URL+"/", 5*time.Second, nil)
	if _, err := fc.Verify(context.Background(), testPayment(), PaymentRequirements{}); err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
}
