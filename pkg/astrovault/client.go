// Package astrovault reads per-wallet DEX stats from the Astrovault API.
package astrovault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/canopy-network/dropcamp/pkg/service"
	"github.com/canopy-network/dropcamp/pkg/utils"
	"go.uber.org/zap"
)

const apiKeyHeader = "x-api-key"

// Stats is the wallet activity summary.
type Stats struct {
	HasLPd    bool
	HasTraded bool
}

// UnmarshalJSON accepts both the camelCase and snake_case spellings the API has used.
func (s *Stats) UnmarshalJSON(b []byte) error {
	var raw struct {
		HasLPdCamel    *bool `json:"hasLPd"`
		HasLPdSnake    *bool `json:"has_lpd"`
		HasTradedCamel *bool `json:"hasTraded"`
		HasTradedSnake *bool `json:"has_traded"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.HasLPd = firstBool(raw.HasLPdCamel, raw.HasLPdSnake)
	s.HasTraded = firstBool(raw.HasTradedCamel, raw.HasTradedSnake)
	return nil
}

func firstBool(vs ...*bool) bool {
	for _, v := range vs {
		if v != nil {
			return *v
		}
	}
	return false
}

// TVL is the wallet's total value locked in USD.
type TVL struct {
	Address string  `json:"address"`
	TVL     float64 `json:"tvl"`
}

// Opts is the set of options for New.
type Opts struct {
	URL string
	// APIKey is sent as x-api-key when set. It is never logged.
	APIKey string
	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit  int
	HTTPClient *http.Client
}

// Client is an Astrovault API client, safe for concurrent use.
type Client struct {
	base   string
	svc    *service.Limited[*http.Request, *http.Response]
	logger *zap.Logger
}

// New returns a client with the default buffer and concurrency limits and a 30s timeout.
func New(logger *zap.Logger, o Opts) (*Client, error) {
	if _, err := url.ParseRequestURI(o.URL); err != nil {
		return nil, errs.E(errs.ErrConfig, "astrovault url", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	headers := http.Header{}
	if o.APIKey != "" {
		headers.Set(apiKeyHeader, o.APIKey)
	}
	svc := service.NewHTTP(service.HTTPOpts{
		Client:  o.HTTPClient,
		Timeout: service.DefaultHTTPTimeout,
		Headers: headers,
		Limits:  service.DefaultOpts(o.RateLimit),
	})

	logger.Debug("astrovault client",
		zap.String("url", o.URL),
		zap.Bool("apiKey", o.APIKey != ""),
		zap.Int("rateLimit", o.RateLimit),
	)
	return &Client{base: strings.TrimRight(o.URL, "/"), svc: svc, logger: logger}, nil
}

// Stats returns whether address has provided liquidity or traded.
func (c *Client) Stats(ctx context.Context, address string) (Stats, error) {
	var s Stats
	err := c.get(ctx, "/wallet/stats", address, &s)
	return s, err
}

// TVL returns the value address has locked.
func (c *Client) TVL(ctx context.Context, address string) (TVL, error) {
	var t TVL
	err := c.get(ctx, "/wallet/tvl", address, &t)
	return t, err
}

// Requests reports how many requests were sent.
func (c *Client) Requests() uint64 { return c.svc.Dispatched() }

func (c *Client) get(ctx context.Context, endpoint, address string, out any) error {
	op := "astrovault " + endpoint

	u := c.base + endpoint + "?" + url.Values{"address": {address}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errs.E(errs.ErrConfig, op, err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("astrovault request", zap.String("endpoint", endpoint), zap.String("address", address))
	resp, err := c.svc.Call(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.E(errs.ErrTransport, op, err)
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errs.Ef(errs.ErrRateLimitExceeded, op, "http %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return errs.Ef(errs.ErrTransport, op, "server %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return errs.Ef(errs.ErrTransport, op, "http %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.E(errs.ErrDecode, op, err)
	}
	return nil
}
