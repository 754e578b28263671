package ragclient

import (
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/ragpay/server/internal/auth"
)

func TestBuildAuthorizationHeaderVerifies(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	const uri = "https://gateway.example.com/docs/search"

	header, err := BuildAuthorizationHeader(key, uri, time.Now())
	if err != nil {
		t.Fatalf("BuildAuthorizationHeader: %v", err)
	}

	verifier := auth.NewVerifier(5*time.Minute, 2*time.Minute)
	wallet, err := verifier.Verify(header, uri)
	if err != nil {
		t.Fatalf("minted header fails verification: %v", err)
	}
	if wallet != key.PublicKey().String() {
		t.Errorf("wallet = %s, want %s", wallet, key.PublicKey())
	}
}

func TestBuildAuthorizationHeaderBindsURI(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	header, err := BuildAuthorizationHeader(key, "https://gateway.example.com/docs/search", time.Now())
	if err != nil {
		t.Fatalf("BuildAuthorizationHeader: %v", err)
	}

	verifier := auth.NewVerifier(5*time.Minute, 2*time.Minute)
	if _, err := verifier.Verify(header, "https://gateway.example.com/docs/chunks"); !errors.Is(err, auth.ErrURIMismatch) {
		t.Errorf("error = %v, want %v", err, auth.ErrURIMismatch)
	}
}
