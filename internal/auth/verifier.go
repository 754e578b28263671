// Package auth verifies Solana signed bearer tokens carried in the
// Authorization header. A token binds a wallet to one request URI for a short
// freshness window; there is no session state.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// CanonicalPrefix is the first line of the signed message.
const CanonicalPrefix = "solana-auth-v1"

// Scheme is the Authorization scheme prefix.
const Scheme = "Solana "

var (
	ErrUnsupportedScheme = errors.New("Unsupported scheme")
	ErrURIMismatch       = errors.New("URI mismatch")
	ErrIssuedInFuture    = errors.New("issued_at is in the future")
	ErrExpired           = errors.New("message expired")
	ErrBadSignature      = errors.New("Signature verify failed")
)

// Message is the signed portion of a bearer token.
type Message struct {
	Version  int    `json:"v"`
	URI      string `json:"uri"`
	IssuedAt string `json:"issuedAt"`
}

// wireToken is the base64url JSON envelope following the scheme prefix.
type wireToken struct {
	Address string  `json:"address"`
	Msg     Message `json:"msg"`
	Sig     string  `json:"sig"`
}

// CanonicalBytes renders the exact byte sequence the wallet signed. issuedAt
// is normalized to UTC at second precision with a Z suffix.
func CanonicalBytes(version int, uri string, issuedAt time.Time) []byte {
	lines := []string{
		CanonicalPrefix,
		fmt.Sprintf("version: %d", version),
		fmt.Sprintf("uri: %s", uri),
		fmt.Sprintf("issued-at: %s", FormatIssuedAt(issuedAt)),
	}
	return []byte(strings.Join(lines, "\n"))
}

// FormatIssuedAt renders a timestamp in the canonical issued-at form.
func FormatIssuedAt(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// Verifier checks bearer tokens against a freshness window.
type Verifier struct {
	maxTTL    time.Duration
	clockSkew time.Duration
	now       func() time.Time
}

// NewVerifier returns a verifier accepting tokens issued within maxTTL,
// tolerating clockSkew of clock drift in both directions.
func NewVerifier(maxTTL, clockSkew time.Duration) *Verifier {
	return &Verifier{
		maxTTL:    maxTTL,
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

// Verify validates the Authorization header value against the request URI and
// returns the authenticated wallet address (base58).
func (v *Verifier) Verify(header, requestURI string) (string, error) {
	token, err := decodeToken(header)
	if err != nil {
		return "", err
	}

	if token.Msg.URI != requestURI {
		return "", ErrURIMismatch
	}

	issued, err := parseIssuedAt(token.Msg.IssuedAt)
	if err != nil {
		return "", fmt.Errorf("bad issuedAt: %w", err)
	}

	now := v.now()
	if issued.Sub(now) > v.clockSkew {
		return "", ErrIssuedInFuture
	}
	if now.Sub(issued) > v.maxTTL+v.clockSkew {
		return "", ErrExpired
	}

	pubkey, err := solana.PublicKeyFromBase58(token.Address)
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}

	sigBytes, err := b64uDecode(token.Sig)
	if err != nil || len(sigBytes) != 64 {
		return "", ErrBadSignature
	}
	sig := solana.SignatureFromBytes(sigBytes)
	canonical := CanonicalBytes(token.Msg.Version, token.Msg.URI, issued)
	if !sig.Verify(pubkey, canonical) {
		return "", ErrBadSignature
	}

	return token.Address, nil
}

// PeekAddress extracts the claimed wallet address without verifying the
// signature. Used for rate-limit keying before full verification runs.
func PeekAddress(header string) string {
	token, err := decodeToken(header)
	if err != nil {
		return ""
	}
	return token.Address
}

func decodeToken(header string) (*wireToken, error) {
	if !strings.HasPrefix(header, Scheme) {
		return nil, ErrUnsupportedScheme
	}
	raw, err := b64uDecode(strings.TrimPrefix(header, Scheme))
	if err != nil {
		return nil, fmt.Errorf("bad auth payload: %w", err)
	}
	var token wireToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("bad auth payload: %w", err)
	}
	if token.Address == "" || token.Sig == "" {
		return nil, fmt.Errorf("bad auth payload: missing fields")
	}
	return &token, nil
}

// parseIssuedAt accepts RFC 3339 timestamps; a missing zone is treated as UTC.
func parseIssuedAt(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// b64uDecode decodes unpadded base64url, tolerating padded input.
func b64uDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
