package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/piratebg/crypto-bubbles/internal/model"
)

// DefaultBaseURL is the public CoinGecko v3 API.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// Source produces ranked entity lists.
type Source interface {
	Markets(ctx context.Context, count int) ([]model.Entity, error)
}

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("market: upstream status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUpstream }

// ClientConfig configures a CoinGecko client. Zero values use defaults.
type ClientConfig struct {
	BaseURL    string
	APIKey     string // sent as the demo key header when set
	VsCurrency string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client fetches /coins/markets ordered by market cap.
type Client struct {
	baseURL    string
	apiKey     string
	vsCurrency string
	http       *http.Client
}

// NewClient creates a CoinGecko client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = "usd"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		vsCurrency: cfg.VsCurrency,
		http:       hc,
	}
}

// Markets returns the top count entities by market cap.
func (c *Client) Markets(ctx context.Context, count int) ([]model.Entity, error) {
	if err := CheckCount(count, MaxCount); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(count))
	q.Set("page", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/coins/markets?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var raw []model.Entity
	if err := sonnet.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	entities := make([]model.Entity, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, e := range raw {
		// Body identity is the entity ID; blanks and duplicates cannot be tracked.
		if e.ID == "" || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		entities = append(entities, e)
		if len(entities) == count {
			break
		}
	}
	if len(raw) > 0 && len(entities) == 0 {
		return nil, fmt.Errorf("%w: no usable entities", ErrMalformed)
	}
	return entities, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
