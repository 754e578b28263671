package ragclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/ragpay/server/pkg/x402"
)

// rpcStub fakes the three RPC calls the builder makes. Sending a transaction
// makes accounts in createOnSend visible, mimicking a confirmed create.
type rpcStub struct {
	mu           sync.Mutex
	blockhash    solana.Hash
	accounts     map[solana.PublicKey]bool
	sent         []*solana.Transaction
	createOnSend []solana.PublicKey
}

func newRPCStub() *rpcStub {
	return &rpcStub{
		blockhash: solana.Hash{1, 2, 3},
		accounts:  make(map[solana.PublicKey]bool),
	}
}

func (s *rpcStub) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: s.blockhash},
	}, nil
}

func (s *rpcStub) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accounts[account] {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{}}, nil
}

func (s *rpcStub) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, tx)
	for _, account := range s.createOnSend {
		s.accounts[account] = true
	}
	return solana.Signature{9}, nil
}

func testRequirements(t *testing.T, amount string) (x402.PaymentRequirements, solana.PublicKey) {
	t.Helper()
	feePayer := solana.NewWallet().PublicKey()
	return x402.PaymentRequirements{
		Scheme:            x402.SchemeExact,
		Network:           x402.NetworkDevnet,
		MaxAmountRequired: amount,
		Resource:          "http://localhost/docs/search",
		Description:       "Retrieval of 2 chunk(s)",
		MimeType:          "application/json",
		PayTo:             solana.NewWallet().PublicKey().String(),
		MaxTimeoutSeconds: 60,
		Asset:             solana.NewWallet().PublicKey().String(),
		Extra:             map[string]string{"feePayer": feePayer.String()},
	}, feePayer
}

func callerTokenAccount(t *testing.T, key solana.PrivateKey, req x402.PaymentRequirements) solana.PublicKey {
	t.Helper()
	mint := solana.MustPublicKeyFromBase58(req.Asset)
	ata, _, err := solana.FindAssociatedTokenAddress(key.PublicKey(), mint)
	if err != nil {
		t.Fatalf("deriving caller token account: %v", err)
	}
	return ata
}

func TestBuildPaymentProducesMatchingTransfer(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	req, feePayer := testRequirements(t, "6000")
	stub := newRPCStub()
	stub.accounts[callerTokenAccount(t, key, req)] = true

	builder := NewPaymentBuilder(key, stub)
	header, info, err := builder.BuildPayment(t.Context(), x402.PaymentRequiredResponse{
		X402Version: x402.Version,
		Accepts:     []x402.PaymentRequirements{req},
		Error:       "No X-PAYMENT header provided",
	})
	if err != nil {
		t.Fatalf("BuildPayment: %v", err)
	}
	if info.Amount != "6000" || info.PayTo != req.PayTo || info.Network != x402.NetworkDevnet {
		t.Errorf("unexpected payment info: %+v", info)
	}
	if len(stub.sent) != 0 {
		t.Errorf("no transaction should be sent when the caller account exists, got %d", len(stub.sent))
	}

	payload, err := x402.ParsePayment(header)
	if err != nil {
		t.Fatalf("parsing produced header: %v", err)
	}
	payer, err := x402.MatchRequirement(payload, req)
	if err != nil {
		t.Fatalf("produced payment does not satisfy requirements: %v", err)
	}
	if payer != key.PublicKey().String() {
		t.Errorf("payer = %s, want %s", payer, key.PublicKey())
	}

	tx, err := solana.TransactionFromBase64(payload.Payload.Transaction)
	if err != nil {
		t.Fatalf("decoding transaction: %v", err)
	}
	if !tx.Message.AccountKeys[0].Equals(feePayer) {
		t.Errorf("fee payer = %s, want %s", tx.Message.AccountKeys[0], feePayer)
	}
	if got := int(tx.Message.Header.NumRequiredSignatures); got != 2 {
		t.Fatalf("required signatures = %d, want 2 (fee payer + caller)", got)
	}
	if !tx.Signatures[0].IsZero() {
		t.Error("fee payer signature slot must stay zeroed for the facilitator")
	}
	if tx.Signatures[1].IsZero() {
		t.Error("caller signature missing")
	}
}

func TestBuildPaymentCreatesMissingCallerAccount(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	req, _ := testRequirements(t, "3000")
	source := callerTokenAccount(t, key, req)

	stub := newRPCStub()
	stub.createOnSend = []solana.PublicKey{source}

	builder := NewPaymentBuilder(key, stub)
	builder.ConfirmInterval = time.Millisecond
	builder.ConfirmTimeout = time.Second

	header, _, err := builder.BuildPayment(t.Context(), x402.PaymentRequiredResponse{
		X402Version: x402.Version,
		Accepts:     []x402.PaymentRequirements{req},
	})
	if err != nil {
		t.Fatalf("BuildPayment: %v", err)
	}

	if len(stub.sent) != 1 {
		t.Fatalf("expected one standalone create transaction, got %d", len(stub.sent))
	}
	create := stub.sent[0]
	if !create.Message.AccountKeys[0].Equals(key.PublicKey()) {
		t.Errorf("create transaction fee payer = %s, want the caller %s",
			create.Message.AccountKeys[0], key.PublicKey())
	}
	if len(create.Signatures) == 0 || create.Signatures[0].IsZero() {
		t.Error("create transaction must be fully signed by the caller")
	}

	payload, err := x402.ParsePayment(header)
	if err != nil {
		t.Fatalf("parsing produced header: %v", err)
	}
	if _, err := x402.MatchRequirement(payload, req); err != nil {
		t.Errorf("produced payment does not satisfy requirements: %v", err)
	}
}

func TestBuildPaymentRejections(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	valid, _ := testRequirements(t, "1000")

	wrongScheme := valid
	wrongScheme.Scheme = "deferred"
	wrongNetwork := valid
	wrongNetwork.Network = "base-sepolia"
	noFeePayer := valid
	noFeePayer.Extra = nil
	badAmount := valid
	badAmount.MaxAmountRequired = "1.5"

	tests := []struct {
		name    string
		accepts []x402.PaymentRequirements
		wantErr error
	}{
		{"empty accepts", nil, ErrNoRequirements},
		{"wrong scheme", []x402.PaymentRequirements{wrongScheme}, ErrUnsupportedScheme},
		{"unknown network", []x402.PaymentRequirements{wrongNetwork}, ErrUnknownNetwork},
		{"missing fee payer", []x402.PaymentRequirements{noFeePayer}, nil},
		{"bad amount", []x402.PaymentRequirements{badAmount}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := NewPaymentBuilder(key, newRPCStub())
			_, _, err := builder.BuildPayment(t.Context(), x402.PaymentRequiredResponse{
				X402Version: x402.Version,
				Accepts:     tt.accepts,
			})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
