package ragclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/ragpay/server/pkg/x402"
)

const defaultHTTPTimeout = 120 * time.Second

// Client talks to a retrieval gateway on behalf of one wallet. Every request
// carries a freshly minted Authorization header bound to its URI; a 402 answer
// triggers one payment attempt and one retry.
type Client struct {
	baseURL    string
	key        solana.PrivateKey
	httpClient *http.Client
	now        func() time.Time

	paymentsDisabled bool
	computeLimit     uint32
	computePrice     uint64

	rpcOverride SolanaRPC
	rpcMu       sync.Mutex
	rpcByNet    map[string]SolanaRPC
}

// Option configures Client construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRPC pins one Solana RPC client for all networks, overriding the public
// endpoint chosen from the challenge network.
func WithRPC(rpcClient SolanaRPC) Option {
	return func(c *Client) { c.rpcOverride = rpcClient }
}

// WithComputeBudget overrides the compute-budget instructions attached to
// payment transactions.
func WithComputeBudget(limit uint32, price uint64) Option {
	return func(c *Client) {
		c.computeLimit = limit
		c.computePrice = price
	}
}

// WithoutPayments disables automatic payment: 402 answers surface as errors.
func WithoutPayments() Option {
	return func(c *Client) { c.paymentsDisabled = true }
}

// New returns a client for the gateway at baseURL paying with key. baseURL
// must be the externally visible address, since Authorization tokens bind to
// the full request URI.
func New(baseURL string, key solana.PrivateKey, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		key:        key,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		now:        time.Now,
		rpcByNet:   make(map[string]SolanaRPC),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks the gateway liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("ragclient: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ragclient: health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// IndexDocuments indexes local files readable by the gateway.
func (c *Client) IndexDocuments(ctx context.Context, docs []DocumentInput) ([]IndexedDocument, error) {
	var out []IndexedDocument
	_, err := c.post(ctx, "/docs/index", map[string]interface{}{"documents": docs}, &out)
	return out, err
}

// IndexWebPages fetches and indexes web pages.
func (c *Client) IndexWebPages(ctx context.Context, pages []WebPageInput) ([]IndexedDocument, error) {
	var out []IndexedDocument
	_, err := c.post(ctx, "/docs/index/web", map[string]interface{}{"pages": pages}, &out)
	return out, err
}

// Search runs a similarity search. k <= 0 leaves the result count to the
// gateway default. The returned PaymentInfo is nil when no payment was needed.
func (c *Client) Search(ctx context.Context, query string, k int, filters map[string]string) (*SearchResult, *PaymentInfo, error) {
	body := map[string]interface{}{"query": query}
	if k > 0 {
		body["k"] = k
	}
	if len(filters) > 0 {
		body["filters"] = filters
	}
	var out SearchResult
	info, err := c.post(ctx, "/docs/search", body, &out)
	if err != nil {
		return nil, nil, err
	}
	return &out, info, nil
}

// GetChunkRange retrieves chunks [start, end] of a document in order. A
// negative end retrieves only the start chunk.
func (c *Client) GetChunkRange(ctx context.Context, docID string, start, end int) (*ChunkRangeResult, *PaymentInfo, error) {
	body := map[string]interface{}{
		"doc_id":      docID,
		"start_chunk": start,
	}
	if end >= 0 {
		body["end_chunk"] = end
	}
	var out ChunkRangeResult
	info, err := c.post(ctx, "/docs/chunks", body, &out)
	if err != nil {
		return nil, nil, err
	}
	return &out, info, nil
}

// post sends one authenticated POST, paying and retrying once on 402.
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) (*PaymentInfo, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ragclient: encode request: %w", err)
	}

	uri := c.baseURL + path
	authHeader, err := BuildAuthorizationHeader(c.key, uri, c.now())
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, uri, authHeader, payload, "")
	if err != nil {
		return nil, err
	}

	var info *PaymentInfo
	if resp.StatusCode == http.StatusPaymentRequired && !c.paymentsDisabled {
		var challenge x402.PaymentRequiredResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&challenge)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("ragclient: parse 402 challenge: %w", decodeErr)
		}

		builder, err := c.builderFor(challenge)
		if err != nil {
			return nil, err
		}
		paymentHeader, built, err := builder.BuildPayment(ctx, challenge)
		if err != nil {
			return nil, err
		}
		info = &built

		// Same body and Authorization; the token is still bound to this URI.
		resp, err = c.send(ctx, uri, authHeader, payload, paymentHeader)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp)
	}

	if settleHeader := resp.Header.Get(x402.PaymentResponseHeader); settleHeader != "" && info != nil {
		if settle, err := x402.DecodeSettleHeader(settleHeader); err == nil {
			info.Settlement = &settle
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("ragclient: decode response: %w", err)
		}
	}
	return info, nil
}

func (c *Client) send(ctx context.Context, uri, authHeader string, payload []byte, paymentHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ragclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authHeader)
	if paymentHeader != "" {
		req.Header.Set(x402.PaymentHeader, paymentHeader)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ragclient: request failed: %w", err)
	}
	return resp, nil
}

// builderFor picks the RPC client for the challenge network and wraps it in a
// payment builder carrying the client's compute-budget overrides.
func (c *Client) builderFor(challenge x402.PaymentRequiredResponse) (*PaymentBuilder, error) {
	network := ""
	if len(challenge.Accepts) > 0 {
		network = challenge.Accepts[0].Network
	}
	rpcClient, err := c.rpcFor(network)
	if err != nil {
		return nil, err
	}
	return &PaymentBuilder{
		Key:              c.key,
		RPC:              rpcClient,
		ComputeUnitLimit: c.computeLimit,
		ComputeUnitPrice: c.computePrice,
	}, nil
}

func (c *Client) rpcFor(network string) (SolanaRPC, error) {
	if c.rpcOverride != nil {
		return c.rpcOverride, nil
	}

	c.rpcMu.Lock()
	defer c.rpcMu.Unlock()
	if client, ok := c.rpcByNet[network]; ok {
		return client, nil
	}

	var endpoint string
	switch network {
	case x402.NetworkMainnet:
		endpoint = rpc.MainNetBeta_RPC
	case x402.NetworkDevnet:
		endpoint = rpc.DevNet_RPC
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}
	client := rpc.New(endpoint)
	c.rpcByNet[network] = client
	return client, nil
}

// apiError maps a non-2xx response body onto an APIError. The gateway answers
// 401 with {"detail"}, 402 with an x402 challenge, and other errors with a
// structured {"error":{"message"}} body.
func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var detail struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &detail) == nil && detail.Detail != "" {
		return &APIError{StatusCode: resp.StatusCode, Detail: detail.Detail}
	}

	var structured struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &structured) == nil && structured.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Detail: structured.Error.Message}
	}

	var challenge struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &challenge) == nil && challenge.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Detail: challenge.Error}
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{StatusCode: resp.StatusCode, Detail: msg}
}
