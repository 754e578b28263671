// Package x402 implements the server side of the x402 micropayment protocol
// over Solana: payment requirements, the 402 challenge, header codecs, and
// the facilitator client used for verification and settlement.
// Reference: https://github.com/coinbase/x402
package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Version is the x402 protocol version spoken by this package.
const Version = 1

// Header names defined by the protocol.
const (
	PaymentHeader         = "X-PAYMENT"
	PaymentResponseHeader = "X-PAYMENT-RESPONSE"
)

// SchemeExact is the only payment scheme this gateway accepts: the
// transaction transfers exactly the required amount.
const SchemeExact = "exact"

// Supported Solana networks.
const (
	NetworkMainnet = "solana"
	NetworkDevnet  = "solana-devnet"
)

// KnownNetwork reports whether network is one this gateway can settle on.
func KnownNetwork(network string) bool {
	return network == NetworkMainnet || network == NetworkDevnet
}

// PaymentRequirements describes one acceptable way to pay for a resource.
type PaymentRequirements struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	MaxAmountRequired string            `json:"maxAmountRequired"` // base units, decimal string
	Resource          string            `json:"resource"`
	Description       string            `json:"description"`
	MimeType          string            `json:"mimeType"`
	PayTo             string            `json:"payTo"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Asset             string            `json:"asset"` // token mint address
	Extra             map[string]string `json:"extra,omitempty"`
}

// FeePayer returns the facilitator fee-payer wallet advertised in extra.
func (r PaymentRequirements) FeePayer() string {
	return r.Extra["feePayer"]
}

// Decimals returns the asset decimals advertised in extra, defaulting to 6
// (USDC) when absent or malformed.
func (r PaymentRequirements) Decimals() uint8 {
	if d, err := strconv.ParseUint(r.Extra["decimals"], 10, 8); err == nil {
		return uint8(d)
	}
	return 6
}

// SolanaPayload carries the partially signed transaction for the exact
// scheme on Solana.
type SolanaPayload struct {
	Transaction string `json:"transaction"` // base64 serialized transaction
}

// PaymentPayload is the decoded X-PAYMENT header.
type PaymentPayload struct {
	X402Version int           `json:"x402Version"`
	Scheme      string        `json:"scheme"`
	Network     string        `json:"network"`
	Payload     SolanaPayload `json:"payload"`
}

// PaymentRequiredResponse is the JSON body of a 402 challenge.
type PaymentRequiredResponse struct {
	X402Version int                   `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Error       string                `json:"error"`
}

// VerifyResponse is the facilitator's answer to a verification request.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse is the facilitator's answer to a settlement request. On
// success it is also surfaced to the client via X-PAYMENT-RESPONSE.
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction,omitempty"` // on-chain signature
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// ParsePayment decodes an X-PAYMENT header value. Standard base64 JSON is the
// wire form; raw JSON is tolerated for tooling.
func ParsePayment(header string) (PaymentPayload, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return PaymentPayload{}, errors.New("x402: empty payment header")
	}

	var data []byte
	if strings.HasPrefix(raw, "{") {
		data = []byte(raw)
	} else {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(raw)
			if err != nil {
				return PaymentPayload{}, fmt.Errorf("x402: decode base64: %w", err)
			}
		}
		data = decoded
	}

	var payload PaymentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return PaymentPayload{}, fmt.Errorf("x402: parse payment payload: %w", err)
	}
	if payload.Payload.Transaction == "" {
		return PaymentPayload{}, errors.New("x402: payment payload missing transaction")
	}
	return payload, nil
}

// EncodePayment renders a payload as an X-PAYMENT header value.
func EncodePayment(payload PaymentPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("x402: encode payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeSettleHeader renders a settle response as an X-PAYMENT-RESPONSE value.
func EncodeSettleHeader(settle SettleResponse) (string, error) {
	data, err := json.Marshal(settle)
	if err != nil {
		return "", fmt.Errorf("x402: encode settle response: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeSettleHeader parses an X-PAYMENT-RESPONSE header value.
func DecodeSettleHeader(header string) (SettleResponse, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return SettleResponse{}, fmt.Errorf("x402: decode settle header: %w", err)
	}
	var settle SettleResponse
	if err := json.Unmarshal(data, &settle); err != nil {
		return SettleResponse{}, fmt.Errorf("x402: parse settle header: %w", err)
	}
	return settle, nil
}
