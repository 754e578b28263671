// Package loaders fetches and extracts text from document sources before
// splitting and indexing.
package loaders

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ragpay/server/internal/circuitbreaker"
	"github.com/ragpay/server/internal/config"
	"github.com/ragpay/server/internal/httputil"
	"github.com/ragpay/server/internal/logger"
)

const maxFetchBytes = 16 << 20 // 16 MiB cap on fetched pages

// WebLoader fetches web pages and extracts their text. Pages that look like
// client-rendered shells are re-fetched through an optional JS-rendering
// service.
type WebLoader struct {
	client         *http.Client
	minTextLen     int
	renderEndpoint string
	breakers       *circuitbreaker.Manager
}

// NewWebLoader builds a loader from configuration. breakers may be nil.
func NewWebLoader(cfg config.LoadersConfig, breakers *circuitbreaker.Manager) *WebLoader {
	return &WebLoader{
		client:         httputil.NewClient(cfg.FetchTimeout.Duration),
		minTextLen:     cfg.MinTextLen,
		renderEndpoint: cfg.RenderEndpoint,
		breakers:       breakers,
	}
}

// Load fetches pageURL and returns its extracted text. When the static fetch
// yields too little text or the page looks like an SPA shell, the render
// fallback runs and wins only if it produces more text.
func (l *WebLoader) Load(ctx context.Context, pageURL string) (string, error) {
	rawHTML, err := l.fetch(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	text := ExtractText(rawHTML)

	if l.renderEndpoint == "" {
		return text, nil
	}
	if utf8.RuneCountInString(text) >= l.minTextLen && !LooksLikeSPA(rawHTML) {
		return text, nil
	}

	rendered, err := l.render(ctx, pageURL)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("url", pageURL).
			Msg("loader.render_fallback_failed")
		return text, nil
	}
	renderedText := ExtractText(rendered)
	if len(renderedText) > len(text) {
		return renderedText, nil
	}
	return text, nil
}

func (l *WebLoader) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "ragpay-loader/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// render asks the configured rendering service for post-JS page HTML.
func (l *WebLoader) render(ctx context.Context, pageURL string) (string, error) {
	endpoint := l.renderEndpoint + "?url=" + url.QueryEscape(pageURL)

	call := func() (interface{}, error) {
		return l.fetch(ctx, endpoint)
	}

	var result interface{}
	var err error
	if l.breakers != nil {
		result, err = l.breakers.Execute(circuitbreaker.ServiceRenderer, call)
	} else {
		result, err = call()
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// LooksLikeSPA reports whether the HTML resembles a client-rendered app shell
// whose real content only appears after JavaScript runs.
func LooksLikeSPA(rawHTML string) bool {
	h := strings.ToLower(rawHTML)
	if spaRootDiv.MatchString(h) || strings.Contains(h, "data-reactroot") {
		return true
	}
	return strings.Count(h, "<script") >= 8
}
