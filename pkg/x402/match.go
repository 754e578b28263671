package x402

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

var (
	ErrSchemeMismatch  = errors.New("x402: payment scheme does not match requirements")
	ErrNetworkMismatch = errors.New("x402: payment network does not match requirements")
	ErrNoTransfer      = errors.New("x402: no matching token transfer in transaction")
)

// MatchRequirement checks that a payment satisfies the advertised
// requirements: same scheme and network, and the embedded transaction moves
// the exact required amount of the required asset to the recipient's token
// account. Returns the paying wallet on success.
func MatchRequirement(payment PaymentPayload, req PaymentRequirements) (string, error) {
	if payment.Scheme != req.Scheme {
		return "", ErrSchemeMismatch
	}
	if payment.Network != req.Network {
		return "", ErrNetworkMismatch
	}

	tx, err := solana.TransactionFromBase64(payment.Payload.Transaction)
	if err != nil {
		return "", fmt.Errorf("x402: decode transaction: %w", err)
	}

	requiredAmount, err := strconv.ParseUint(req.MaxAmountRequired, 10, 64)
	if err != nil {
		return "", fmt.Errorf("x402: invalid maxAmountRequired %q: %w", req.MaxAmountRequired, err)
	}

	payTo, err := solana.PublicKeyFromBase58(req.PayTo)
	if err != nil {
		return "", fmt.Errorf("x402: invalid payTo: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(req.Asset)
	if err != nil {
		return "", fmt.Errorf("x402: invalid asset: %w", err)
	}
	expectedDest, _, err := solana.FindAssociatedTokenAddress(payTo, mint)
	if err != nil {
		return "", fmt.Errorf("x402: derive recipient token account: %w", err)
	}

	if feePayer := req.FeePayer(); feePayer != "" && len(tx.Message.AccountKeys) > 0 {
		if tx.Message.AccountKeys[0].String() != feePayer {
			return "", fmt.Errorf("x402: transaction fee payer %s does not match required %s",
				tx.Message.AccountKeys[0], feePayer)
		}
	}

	payer, err := findExactTransfer(tx, expectedDest, mint, requiredAmount)
	if err != nil {
		return "", err
	}
	return payer.String(), nil
}

// findExactTransfer scans the transaction for a token transfer of exactly
// amount base units of mint into dest and returns the transfer authority.
func findExactTransfer(tx *solana.Transaction, dest, mint solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
			continue
		}
		programID := tx.Message.AccountKeys[inst.ProgramIDIndex]
		if !programID.Equals(solana.TokenProgramID) {
			continue
		}
		accounts, err := inst.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("x402: resolve instruction accounts: %w", err)
		}
		decoded, err := token.DecodeInstruction(accounts, []byte(inst.Data))
		if err != nil {
			continue
		}
		transfer, ok := decoded.Impl.(*token.TransferChecked)
		if !ok {
			continue
		}
		if !transfer.GetDestinationAccount().PublicKey.Equals(dest) {
			continue
		}
		if !transfer.GetMintAccount().PublicKey.Equals(mint) {
			continue
		}
		if transfer.Amount == nil {
			return solana.PublicKey{}, errors.New("x402: transferChecked missing amount")
		}
		if *transfer.Amount != amount {
			return solana.PublicKey{}, fmt.Errorf("x402: transfer amount %d does not match required %d", *transfer.Amount, amount)
		}
		return transfer.GetOwnerAccount().PublicKey, nil
	}
	return solana.PublicKey{}, ErrNoTransfer
}
