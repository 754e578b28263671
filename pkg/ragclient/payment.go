package ragclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/ragpay/server/internal/rpcutil"
	"github.com/ragpay/server/pkg/x402"
)

// Defaults for the compute-budget instructions prepended to payment
// transactions.
const (
	DefaultComputeUnitLimit = 50_000
	DefaultComputeUnitPrice = 1 // micro-lamports per compute unit
)

const (
	defaultConfirmInterval = 500 * time.Millisecond
	defaultConfirmTimeout  = 30 * time.Second
)

var (
	ErrNoRequirements    = errors.New("ragclient: 402 response offered no payment requirements")
	ErrUnsupportedScheme = errors.New("ragclient: unsupported payment scheme")
	ErrUnknownNetwork    = errors.New("ragclient: unknown payment network")
)

// SolanaRPC is the subset of the Solana JSON-RPC surface the payment builder
// needs. *rpc.Client satisfies it.
type SolanaRPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// PaymentBuilder turns a 402 challenge into an X-PAYMENT header value. It
// honors the first advertised requirement, requires the exact scheme on a
// known Solana network, and signs only with the caller key: the facilitator
// fee payer countersigns during settlement.
type PaymentBuilder struct {
	Key solana.PrivateKey
	RPC SolanaRPC

	// Zero values fall back to the package defaults.
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
	ConfirmInterval  time.Duration
	ConfirmTimeout   time.Duration
}

// NewPaymentBuilder returns a builder paying with key via rpcClient.
func NewPaymentBuilder(key solana.PrivateKey, rpcClient SolanaRPC) *PaymentBuilder {
	return &PaymentBuilder{Key: key, RPC: rpcClient}
}

// BuildPayment selects challenge.Accepts[0] and builds the matching payment
// header. The caller's token account is created first (caller-paid, its own
// transaction) if it does not exist yet; the recipient's account is only
// derived, with an idempotent create piggy-backed on the payment transaction
// at the fee payer's expense.
func (b *PaymentBuilder) BuildPayment(ctx context.Context, challenge x402.PaymentRequiredResponse) (string, PaymentInfo, error) {
	if len(challenge.Accepts) == 0 {
		return "", PaymentInfo{}, ErrNoRequirements
	}
	req := challenge.Accepts[0]

	if req.Scheme != x402.SchemeExact {
		return "", PaymentInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, req.Scheme)
	}
	if !x402.KnownNetwork(req.Network) {
		return "", PaymentInfo{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, req.Network)
	}

	amount, err := strconv.ParseUint(req.MaxAmountRequired, 10, 64)
	if err != nil {
		return "", PaymentInfo{}, fmt.Errorf("ragclient: invalid maxAmountRequired %q: %w", req.MaxAmountRequired, err)
	}
	feePayerAddr := req.FeePayer()
	if feePayerAddr == "" {
		return "", PaymentInfo{}, errors.New("ragclient: requirements missing extra.feePayer")
	}
	feePayer, err := solana.PublicKeyFromBase58(feePayerAddr)
	if err != nil {
		return "", PaymentInfo{}, fmt.Errorf("ragclient: invalid feePayer: %w", err)
	}
	payTo, err := solana.PublicKeyFromBase58(req.PayTo)
	if err != nil {
		return "", PaymentInfo{}, fmt.Errorf("ragclient: invalid payTo: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(req.Asset)
	if err != nil {
		return "", PaymentInfo{}, fmt.Errorf("ragclient: invalid asset: %w", err)
	}

	caller := b.Key.PublicKey()
	source, _, err := solana.FindAssociatedTokenAddress(caller, mint)
	if err != nil {
		return "", PaymentInfo{}, fmt.Errorf("ragclient: derive source token account: %w", err)
	}
	dest, _, err := solana.FindAssociatedTokenAddress(payTo, mint)
	if err != nil {
		return "", PaymentInfo{}, fmt.Errorf("ragclient: derive destination token account: %w", err)
	}

	if err := b.ensureCallerTokenAccount(ctx, caller, mint, source); err != nil {
		return "", PaymentInfo{}, err
	}

	transfer := token.NewTransferCheckedInstructionBuilder().
		SetAmount(amount).
		SetDecimals(req.Decimals()).
		SetSourceAccount(source).
		SetMintAccount(mint).
		SetDestinationAccount(dest).
		SetOwnerAccount(caller).
		Build()

	blockhash, err := b.latestBlockhash(ctx)
	if err != nil {
		return "", PaymentInfo{}, err
	}

	tx, err := solana.NewTransactionBuilder().
		AddInstruction(computebudget.NewSetComputeUnitLimitInstruction(b.computeUnitLimit()).Build()).
		AddInstruction(computebudget.NewSetComputeUnitPriceInstruction(b.computeUnitPrice()).Build()).
		AddInstruction(idempotentCreateTokenAccount(feePayer, payTo, mint)).
		AddInstruction(transfer).
		SetRecentBlockHash(blockhash.Value.Blockhash).
		SetFeePayer(feePayer).
		Build()
	if err != nil {
		return "", PaymentInfo{}, fmt.Errorf("ragclient: build payment transaction: %w", err)
	}

	// Sign with the caller key only; the fee payer slot stays zeroed for the
	// facilitator to fill in.
	if _, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(caller) {
			return &b.Key
		}
		return nil
	}); err != nil {
		return "", PaymentInfo{}, fmt.Errorf("ragclient: sign payment transaction: %w", err)
	}

	encoded, err := tx.ToBase64()
	if err != nil {
		return "", PaymentInfo{}, fmt.Errorf("ragclient: encode payment transaction: %w", err)
	}

	header, err := x402.EncodePayment(x402.PaymentPayload{
		X402Version: x402.Version,
		Scheme:      req.Scheme,
		Network:     req.Network,
		Payload:     x402.SolanaPayload{Transaction: encoded},
	})
	if err != nil {
		return "", PaymentInfo{}, err
	}

	info := PaymentInfo{
		Amount:  req.MaxAmountRequired,
		PayTo:   req.PayTo,
		Network: req.Network,
	}
	return header, info, nil
}

// ensureCallerTokenAccount creates the caller's associated token account when
// it does not exist. The create is its own caller-paid transaction submitted
// before the payment, and the builder waits until the account is visible so
// the payment transaction cannot race it.
func (b *PaymentBuilder) ensureCallerTokenAccount(ctx context.Context, owner, mint, ata solana.PublicKey) error {
	exists, err := b.accountExists(ctx, ata)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	blockhash, err := b.latestBlockhash(ctx)
	if err != nil {
		return err
	}
	tx, err := solana.NewTransactionBuilder().
		AddInstruction(idempotentCreateTokenAccount(owner, owner, mint)).
		SetRecentBlockHash(blockhash.Value.Blockhash).
		SetFeePayer(owner).
		Build()
	if err != nil {
		return fmt.Errorf("ragclient: build token account create: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner) {
			return &b.Key
		}
		return nil
	}); err != nil {
		return fmt.Errorf("ragclient: sign token account create: %w", err)
	}
	sig, err := b.RPC.SendTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("ragclient: send token account create: %w", err)
	}

	deadline := time.Now().Add(b.confirmTimeout())
	for {
		exists, err := b.accountExists(ctx, ata)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("ragclient: token account %s not visible after create (tx %s)", ata, sig)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.confirmInterval()):
		}
	}
}

// latestBlockhash fetches a recent blockhash, retrying transient RPC errors.
func (b *PaymentBuilder) latestBlockhash(ctx context.Context) (*rpc.GetLatestBlockhashResult, error) {
	result, err := rpcutil.WithRetry(ctx, func() (*rpc.GetLatestBlockhashResult, error) {
		return b.RPC.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	})
	if err != nil {
		return nil, fmt.Errorf("ragclient: get latest blockhash: %w", err)
	}
	return result, nil
}

func (b *PaymentBuilder) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	res, err := b.RPC.GetAccountInfo(ctx, account)
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ragclient: get account info: %w", err)
	}
	return res != nil && res.Value != nil, nil
}

func (b *PaymentBuilder) computeUnitLimit() uint32 {
	if b.ComputeUnitLimit != 0 {
		return b.ComputeUnitLimit
	}
	return DefaultComputeUnitLimit
}

func (b *PaymentBuilder) computeUnitPrice() uint64 {
	if b.ComputeUnitPrice != 0 {
		return b.ComputeUnitPrice
	}
	return DefaultComputeUnitPrice
}

func (b *PaymentBuilder) confirmInterval() time.Duration {
	if b.ConfirmInterval > 0 {
		return b.ConfirmInterval
	}
	return defaultConfirmInterval
}

func (b *PaymentBuilder) confirmTimeout() time.Duration {
	if b.ConfirmTimeout > 0 {
		return b.ConfirmTimeout
	}
	return defaultConfirmTimeout
}

// idempotentCreateTokenAccount builds a CreateIdempotent instruction for the
// associated token account program: a no-op when the account already exists.
func idempotentCreateTokenAccount(payer, owner, mint solana.PublicKey) solana.Instruction {
	ata, _, _ := solana.FindAssociatedTokenAddress(owner, mint)
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(ata).WRITE(),
			solana.Meta(owner),
			solana.Meta(mint),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(solana.TokenProgramID),
		},
		[]byte{1},
	)
}
