package ragclient

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/ragpay/server/internal/auth"
)

// wireToken is the base64url JSON envelope following the "Solana " prefix.
type wireToken struct {
	Address string       `json:"address"`
	Msg     auth.Message `json:"msg"`
	Sig     string       `json:"sig"`
}

// BuildAuthorizationHeader mints a bearer token binding key's wallet to uri at
// issuedAt. Tokens are single-URI and short-lived, so callers mint a fresh one
// per request.
func BuildAuthorizationHeader(key solana.PrivateKey, uri string, issuedAt time.Time) (string, error) {
	sig, err := key.Sign(auth.CanonicalBytes(1, uri, issuedAt))
	if err != nil {
		return "", fmt.Errorf("ragclient: sign auth message: %w", err)
	}

	token := wireToken{
		Address: key.PublicKey().String(),
		Msg: auth.Message{
			Version:  1,
			URI:      uri,
			IssuedAt: auth.FormatIssuedAt(issuedAt),
		},
		Sig: base64.RawURLEncoding.EncodeToString(sig[:]),
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("ragclient: encode auth token: %w", err)
	}
	return auth.Scheme + base64.RawURLEncoding.EncodeToString(raw), nil
}
