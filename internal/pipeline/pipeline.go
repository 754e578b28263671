// Package pipeline gates retrieval responses behind x402 micropayments.
//
// Each gated request walks a fixed sequence: diff the retrieved chunks
// against the purchase ledger, challenge with 402 if anything is owed,
// verify the submitted payment, prepare the response body, settle through
// the facilitator, and finally record the newly paid chunks. Settlement is
// the commit point: a settle failure leaves the ledger untouched, and a
// ledger failure after settlement is logged as a divergence.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ragpay/server/internal/chunks"
	"github.com/ragpay/server/internal/config"
	apierrors "github.com/ragpay/server/internal/errors"
	"github.com/ragpay/server/internal/httputil"
	"github.com/ragpay/server/internal/ledger"
	"github.com/ragpay/server/internal/logger"
	"github.com/ragpay/server/internal/metrics"
	"github.com/ragpay/server/pkg/x402"
)

// recordTimeout bounds the ledger write after settlement. The write runs on a
// detached context so a client disconnect cannot abandon a settled purchase.
const recordTimeout = 10 * time.Second

// PrepareFunc builds the response body for the served chunks. It runs after
// payment verification and before settlement.
type PrepareFunc func(served []chunks.Chunk) (interface{}, error)

// Pipeline runs the payment state machine for retrieval endpoints.
type Pipeline struct {
	cfg         config.X402Config
	ledger      ledger.PurchaseLedger
	facilitator *x402.FacilitatorClient
	metrics     *metrics.Metrics
}

// New builds a pipeline. facilitator may be nil when payments are disabled.
func New(cfg config.X402Config, l ledger.PurchaseLedger, facilitator *x402.FacilitatorClient, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		ledger:      l,
		facilitator: facilitator,
		metrics:     m,
	}
}

// Run serves retrieved chunks to wallet, charging for any it does not yet
// own. The full retrieved set is always what gets served; payment covers
// only the unpaid portion. Run writes the complete HTTP response, including
// 402 challenges and error responses.
func (p *Pipeline) Run(w http.ResponseWriter, r *http.Request, wallet, endpoint string, retrieved []chunks.Chunk, prepare PrepareFunc) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	start := time.Now()
	defer func() {
		p.metrics.RetrievalDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if len(retrieved) == 0 {
		p.serve(w, endpoint, "", retrieved, nil, prepare)
		return
	}

	if !p.cfg.Enabled {
		p.serve(w, endpoint, "", retrieved, nil, prepare)
		return
	}

	unpaid, paid, err := ledger.Split(ctx, p.ledger, wallet, retrieved)
	if err != nil {
		log.Error().Err(err).Str("wallet", logger.TruncateAddress(wallet)).Msg("pipeline.ledger_read_failed")
		p.metrics.RetrievalsTotal.WithLabelValues(endpoint, "error").Inc()
		apierrors.WriteSimpleError(w, apierrors.ErrCodeLedgerError, "Failed to check chunk ownership")
		return
	}

	var totalOwed uint64
	for _, c := range unpaid {
		totalOwed += c.PriceBaseUnits
	}
	if totalOwed == 0 {
		log.Debug().
			Str("wallet", logger.TruncateAddress(wallet)).
			Int("chunks", len(retrieved)).
			Msg("pipeline.short_circuit")
		p.metrics.ChunksServedTotal.WithLabelValues("owned").Add(float64(len(retrieved)))
		p.serve(w, endpoint, "", retrieved, nil, prepare)
		return
	}

	requirements := p.buildRequirements(r, totalOwed, len(unpaid))

	header := r.Header.Get(x402.PaymentHeader)
	if header == "" {
		p.challenge(w, r, endpoint, "challenge", "missing_header", "No X-PAYMENT header provided", requirements)
		return
	}

	payment, err := x402.ParsePayment(header)
	if err != nil {
		log.Warn().Err(err).Msg("pipeline.bad_payment_header")
		p.challenge(w, r, endpoint, "parse", "malformed_header", "Invalid payment header format", requirements)
		return
	}

	payer, err := x402.MatchRequirement(payment, requirements)
	if err != nil {
		log.Warn().Err(err).Msg("pipeline.payment_mismatch")
		p.challenge(w, r, endpoint, "match", "mismatch", "Payment does not match requirements", requirements)
		return
	}
	if payer != wallet {
		// The transaction signer legitimately may differ from the
		// authenticated wallet (someone else paying), so only log it.
		log.Debug().
			Str("wallet", logger.TruncateAddress(wallet)).
			Str("payer", logger.TruncateAddress(payer)).
			Msg("pipeline.payer_differs")
	}

	verifyStart := time.Now()
	verifyResp, err := p.facilitator.Verify(ctx, payment, requirements)
	p.metrics.FacilitatorCallSeconds.WithLabelValues("verify").Observe(time.Since(verifyStart).Seconds())
	if err != nil {
		p.metrics.FacilitatorCallsTotal.WithLabelValues("verify", "error").Inc()
		p.challenge(w, r, endpoint, "verify", "facilitator_error", fmt.Sprintf("Payment verification failed: %s", err), requirements)
		return
	}
	if !verifyResp.IsValid {
		reason := verifyResp.InvalidReason
		if reason == "" {
			reason = "Unknown error"
		}
		p.metrics.FacilitatorCallsTotal.WithLabelValues("verify", "invalid").Inc()
		p.challenge(w, r, endpoint, "verify", "invalid", fmt.Sprintf("Invalid payment: %s", reason), requirements)
		return
	}
	p.metrics.FacilitatorCallsTotal.WithLabelValues("verify", "ok").Inc()

	body, err := p.prepareBody(retrieved, prepare)
	if err != nil {
		log.Error().Err(err).Msg("pipeline.prepare_failed")
		p.metrics.RetrievalsTotal.WithLabelValues(endpoint, "error").Inc()
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInternalError, "Failed to build response")
		return
	}

	settleStart := time.Now()
	settleResp, err := p.facilitator.Settle(ctx, payment, requirements)
	if err != nil {
		p.metrics.FacilitatorCallsTotal.WithLabelValues("settle", "error").Inc()
		p.challenge(w, r, endpoint, "settle", "facilitator_error", fmt.Sprintf("Settlement failed: %s", err), requirements)
		return
	}
	if !settleResp.Success {
		reason := settleResp.ErrorReason
		if reason == "" {
			reason = "Unknown error"
		}
		p.metrics.FacilitatorCallsTotal.WithLabelValues("settle", "failed").Inc()
		p.challenge(w, r, endpoint, "settle", "rejected", fmt.Sprintf("Settlement failed: %s", reason), requirements)
		return
	}
	p.metrics.FacilitatorCallsTotal.WithLabelValues("settle", "ok").Inc()
	p.metrics.ObserveSettlement(p.cfg.Network, totalOwed, time.Since(settleStart))

	unpaidIDs := make([]string, len(unpaid))
	for i, c := range unpaid {
		unpaidIDs[i] = c.ID
	}

	// Settlement moved funds, so the record write must outlive the request.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := p.ledger.Record(recordCtx, wallet, unpaidIDs); err != nil {
		log.Error().
			Err(err).
			Str("wallet", logger.TruncateAddress(wallet)).
			Strs("chunk_ids", unpaidIDs).
			Str("settle_tx", settleResp.Transaction).
			Msg("pipeline.ledger_divergence")
		p.metrics.LedgerDivergenceTotal.Inc()
		p.metrics.RetrievalsTotal.WithLabelValues(endpoint, "error").Inc()
		apierrors.WriteSimpleError(w, apierrors.ErrCodeLedgerError, "Payment settled but purchase recording failed")
		return
	}

	log.Info().
		Str("wallet", logger.TruncateAddress(wallet)).
		Int("chunks_paid", len(unpaid)).
		Int("chunks_owned", len(paid)).
		Uint64("amount_base_units", totalOwed).
		Str("settle_tx", settleResp.Transaction).
		Msg("pipeline.payment_settled")

	p.metrics.ChunksServedTotal.WithLabelValues("paid").Add(float64(len(unpaid)))
	p.metrics.ChunksServedTotal.WithLabelValues("owned").Add(float64(len(paid)))

	settleHeader, err := x402.EncodeSettleHeader(settleResp)
	if err != nil {
		log.Error().Err(err).Msg("pipeline.settle_header_failed")
	}
	p.serve(w, endpoint, settleHeader, retrieved, body, prepare)
}

// buildRequirements constructs the payment requirements for this request.
// The resource is the absolute request URL, so the challenge echoed in the
// 402 reconstructs byte-identically when the client retries.
func (p *Pipeline) buildRequirements(r *http.Request, totalOwed uint64, unpaidCount int) x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            x402.SchemeExact,
		Network:           p.cfg.Network,
		MaxAmountRequired: strconv.FormatUint(totalOwed, 10),
		Resource:          httputil.RequestURL(r),
		Description:       fmt.Sprintf("Retrieval of %d chunk(s)", unpaidCount),
		MimeType:          "application/json",
		PayTo:             p.cfg.PayToAddress,
		Asset:             p.cfg.Asset,
		MaxTimeoutSeconds: p.cfg.MaxTimeoutSeconds,
		Extra: map[string]string{
			"feePayer": p.cfg.FeePayer,
			"decimals": strconv.FormatUint(uint64(p.cfg.AssetDecimals), 10),
		},
	}
}

// challenge writes a 402 response and records the failure stage.
func (p *Pipeline) challenge(w http.ResponseWriter, r *http.Request, endpoint, stage, reason, errMsg string, requirements x402.PaymentRequirements) {
	p.metrics.PaymentsFailedTotal.WithLabelValues(stage, reason).Inc()
	p.metrics.RetrievalsTotal.WithLabelValues(endpoint, "challenged").Inc()
	x402.WriteChallenge(w, r, errMsg, []x402.PaymentRequirements{requirements})
}

// prepareBody marshals the response ahead of settlement so a body-building
// failure cannot strand a settled payment.
func (p *Pipeline) prepareBody(served []chunks.Chunk, prepare PrepareFunc) ([]byte, error) {
	payload, err := prepare(served)
	if err != nil {
		return nil, err
	}
	return json.Marshal(payload)
}

// serve writes the 200 response. body may be pre-marshaled from prepareBody;
// when nil it is built here.
func (p *Pipeline) serve(w http.ResponseWriter, endpoint, settleHeader string, served []chunks.Chunk, body []byte, prepare PrepareFunc) {
	if body == nil {
		var err error
		body, err = p.prepareBody(served, prepare)
		if err != nil {
			p.metrics.RetrievalsTotal.WithLabelValues(endpoint, "error").Inc()
			apierrors.WriteSimpleError(w, apierrors.ErrCodeInternalError, "Failed to build response")
			return
		}
	}

	if settleHeader != "" {
		w.Header().Set(x402.PaymentResponseHeader, settleHeader)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	p.metrics.RetrievalsTotal.WithLabelValues(endpoint, "ok").Inc()
}
