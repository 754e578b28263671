package x402

import (
	"errors"
	"strconv"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

type txParams struct {
	payer    solana.PublicKey
	feePayer solana.PublicKey
	payTo    solana.PublicKey
	mint     solana.PublicKey
	amount   uint64
	decimals uint8
}

func buildTransferTx(t *testing.T, p txParams) string {
	t.Helper()

	source, _, err := solana.FindAssociatedTokenAddress(p.payer, p.mint)
	if err != nil {
		t.Fatalf("deriving source ATA: %v", err)
	}
	dest, _, err := solana.FindAssociatedTokenAddress(p.payTo, p.mint)
	if err != nil {
		t.Fatalf("deriving dest ATA: %v", err)
	}

	transfer := token.NewTransferCheckedInstructionBuilder().
		SetAmount(p.amount).
		SetDecimals(p.decimals).
		SetSourceAccount(source).
		SetMintAccount(p.mint).
		SetDestinationAccount(dest).
		SetOwnerAccount(p.payer).
		Build()

	tx, err := solana.NewTransactionBuilder().
		AddInstruction(transfer).
		SetRecentBlockHash(solana.Hash{}).
		SetFeePayer(p.feePayer).
		Build()
	if err != nil {
		t.Fatalf("building transaction: %v", err)
	}
	encoded, err := tx.ToBase64()
	if err != nil {
		t.Fatalf("encoding transaction: %v", err)
	}
	return encoded
}

func testRequirements(p txParams) PaymentRequirements {
	return PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           NetworkDevnet,
		MaxAmountRequired: strconv.FormatUint(p.amount, 10),
		Resource:          "http://localhost/docs/search",
		PayTo:             p.payTo.String(),
		Asset:             p.mint.String(),
		MaxTimeoutSeconds: 60,
		Extra:             map[string]string{"feePayer": p.feePayer.String()},
	}
}

func testParams() txParams {
	return txParams{
		payer:    solana.NewWallet().PublicKey(),
		feePayer: solana.NewWallet().PublicKey(),
		payTo:    solana.NewWallet().PublicKey(),
		mint:     solana.NewWallet().PublicKey(),
		amount:   250_000,
		decimals: 6,
	}
}

func TestMatchRequirementValid(t *testing.T) {
	p := testParams()
	payment := PaymentPayload{
		X402Version: Version,
		Scheme:      SchemeExact,
		Network:     NetworkDevnet,
		Payload:     SolanaPayload{Transaction: buildTransferTx(t, p)},
	}

	payer, err := MatchRequirement(payment, testRequirements(p))
	if err != nil {
		t.Fatalf("MatchRequirement() error: %v", err)
	}
	if payer != p.payer.String() {
		t.Errorf("payer = %s, want %s", payer, p.payer)
	}
}

func TestMatchRequirementSchemeMismatch(t *testing.T) {
	p := testParams()
	payment := PaymentPayload{
		Scheme:  "lazy",
		Network: NetworkDevnet,
		Payload: SolanaPayload{Transaction: buildTransferTx(t, p)},
	}
	_, err := MatchRequirement(payment, testRequirements(p))
	if !errors.Is(err, ErrSchemeMismatch) {
		t.Fatalf("error = %v, want ErrSchemeMismatch", err)
	}
}

func TestMatchRequirementNetworkMismatch(t *testing.T) {
	p := testParams()
	payment := PaymentPayload{
		Scheme:  SchemeExact,
		Network: NetworkMainnet,
		Payload: SolanaPayload{Transaction: buildTransferTx(t, p)},
	}
	_, err := MatchRequirement(payment, testRequirements(p))
	if !errors.Is(err, ErrNetworkMismatch) {
		t.Fatalf("error = %v, want ErrNetworkMismatch", err)
	}
}

func TestMatchRequirementWrongAmount(t *testing.T) {
	p := testParams()
	short := p
	short.amount = p.amount - 1
	payment := PaymentPayload{
		Scheme:  SchemeExact,
		Network: NetworkDevnet,
		Payload: SolanaPayload{Transaction: buildTransferTx(t, short)},
	}
	if _, err := MatchRequirement(payment, testRequirements(p)); err == nil {
		t.Fatal("MatchRequirement() accepted an underpaying transaction")
	}
}

func TestMatchRequirementWrongRecipient(t *testing.T) {
	p := testParams()
	diverted := p
	diverted.payTo = solana.NewWallet().PublicKey()
	payment := PaymentPayload{
		Scheme:  SchemeExact,
		Network: NetworkDevnet,
		Payload: SolanaPayload{Transaction: buildTransferTx(t, diverted)},
	}
	_, err := MatchRequirement(payment, testRequirements(p))
	if !errors.Is(err, ErrNoTransfer) {
		t.Fatalf("error = %v, want ErrNoTransfer", err)
	}
}

func TestMatchRequirementWrongMint(t *testing.T) {
	p := testParams()
	wrongMint := p
	wrongMint.mint = solana.NewWallet().PublicKey()
	payment := PaymentPayload{
		Scheme:  SchemeExact,
		Network: NetworkDevnet,
		Payload: SolanaPayload{Transaction: buildTransferTx(t, wrongMint)},
	}
	_, err := MatchRequirement(payment, testRequirements(p))
	if err == nil {
		t.Fatal("MatchRequirement() accepted a transfer of the wrong token")
	}
}

func TestMatchRequirementWrongFeePayer(t *testing.T) {
	p := testParams()
	rogue := p
	rogue.feePayer = solana.NewWallet().PublicKey()
	payment := PaymentPayload{
		Scheme:  SchemeExact,
		Network: NetworkDevnet,
		Payload: SolanaPayload{Transaction: buildTransferTx(t, rogue)},
	}
	if _, err := MatchRequirement(payment, testRequirements(p)); err == nil {
		t.Fatal("MatchRequirement() accepted a transaction with the wrong fee payer")
	}
}

func TestMatchRequirementGarbageTransaction(t *testing.T) {
	p := testParams()
	payment := PaymentPayload{
		Scheme:  SchemeExact,
		Network: NetworkDevnet,
		Payload: SolanaPayload{Transaction: "not-a-transaction"},
	}
	if _, err := MatchRequirement(payment, testRequirements(p)); err == nil {
		t.Fatal("MatchRequirement() accepted garbage transaction bytes")
	}
}
