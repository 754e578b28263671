package x402

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ragpay/server/internal/circuitbreaker"
	"github.com/ragpay/server/internal/httputil"
	"github.com/ragpay/server/internal/logger"
)

// FacilitatorClient talks to an x402 facilitator service that simulates
// (verify) and broadcasts (settle) payment transactions.
type FacilitatorClient struct {
	baseURL  string
	client   *http.Client
	breakers *circuitbreaker.Manager
}

// facilitatorRequest is the body for both /verify and /settle.
type facilitatorRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// NewFacilitatorClient builds a client for the given facilitator URL.
// breakers may be nil.
func NewFacilitatorClient(baseURL string, timeout time.Duration, breakers *circuitbreaker.Manager) *FacilitatorClient {
	return &FacilitatorClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   httputil.NewClient(timeout),
		breakers: breakers,
	}
}

// Verify asks the facilitator to validate the payment without broadcasting
// it. Like Settle it is called once per request: a transient failure surfaces
// as a fresh challenge and the client re-submits, so server-side retries
// would only stack duplicate simulations on a struggling facilitator.
func (f *FacilitatorClient) Verify(ctx context.Context, payment PaymentPayload, req PaymentRequirements) (VerifyResponse, error) {
	var out VerifyResponse
	if err := f.post(ctx, "/verify", payment, req, &out); err != nil {
		return VerifyResponse{}, err
	}
	return out, nil
}

// Settle asks the facilitator to sign and broadcast the payment. Settlement
// moves funds, so it is attempted exactly once per request.
func (f *FacilitatorClient) Settle(ctx context.Context, payment PaymentPayload, req PaymentRequirements) (SettleResponse, error) {
	var out SettleResponse
	if err := f.post(ctx, "/settle", payment, req, &out); err != nil {
		return SettleResponse{}, err
	}
	return out, nil
}

func (f *FacilitatorClient) post(ctx context.Context, path string, payment PaymentPayload, req PaymentRequirements, out interface{}) error {
	body, err := json.Marshal(facilitatorRequest{
		X402Version:         Version,
		PaymentPayload:      payment,
		PaymentRequirements: req,
	})
	if err != nil {
		return fmt.Errorf("x402: encode facilitator request: %w", err)
	}

	call := func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := f.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("x402: facilitator %s: %w", path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("x402: reading facilitator response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("x402: facilitator %s returned %d: %s", path, resp.StatusCode, truncate(data, 200))
		}
		return data, nil
	}

	var result interface{}
	if f.breakers != nil {
		result, err = f.breakers.Execute(circuitbreaker.ServiceFacilitator, call)
	} else {
		result, err = call()
	}
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("path", path).
			Msg("facilitator.call_failed")
		return err
	}

	if err := json.Unmarshal(result.([]byte), out); err != nil {
		return fmt.Errorf("x402: parse facilitator response: %w", err)
	}
	return nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
