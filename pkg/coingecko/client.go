// Package coingecko fetches USD prices with a per-run cache.
package coingecko

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/canopy-network/dropcamp/pkg/service"
	"github.com/canopy-network/dropcamp/pkg/utils"
	"go.uber.org/zap"
)

// DefaultURL is the public API root.
const DefaultURL = "https://api.coingecko.com/api/v3"

// DefaultLimits matches the public API's free tier.
var DefaultLimits = service.Opts{Buffer: 10, Concurrency: 5, Rate: 30, Period: time.Minute}

// Price is a quote for one id.
type Price struct {
	USD float64 `json:"usd"`
}

// Opts is the set of options for New.
type Opts struct {
	URL        string
	HTTPClient *http.Client
	// Limits defaults to DefaultLimits.
	Limits *service.Opts
}

// Client is a cached price client. The cache lives as long as the client.
type Client struct {
	base   string
	svc    *service.Limited[*http.Request, *http.Response]
	logger *zap.Logger

	// mu guards cache and is held across the fetch, so concurrent callers asking for the
	// same ids wait for one request instead of issuing their own.
	mu    sync.Mutex
	cache map[string]Price
}

// New returns a price client.
func New(logger *zap.Logger, o Opts) *Client {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	limits := DefaultLimits
	if o.Limits != nil {
		limits = *o.Limits
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   strings.TrimRight(o.URL, "/"),
		svc:    service.NewHTTP(service.HTTPOpts{Client: o.HTTPClient, Limits: limits}),
		logger: logger,
		cache:  map[string]Price{},
	}
}

// Prices returns the USD price of every id. Ids missing from the cache are fetched in one request.
// If any id is still unknown afterwards the call fails with errs.ErrMissingPrice.
func (c *Client) Prices(ctx context.Context, ids []string) (map[string]Price, error) {
	if len(ids) == 0 {
		return map[string]Price{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var missing []string
	for _, id := range utils.Dedup(ids) {
		if _, ok := c.cache[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		c.logger.Debug("fetching prices", zap.Strings("ids", missing))
		fetched, err := c.fetch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for id, p := range fetched {
			c.cache[id] = p
		}
	}

	out := make(map[string]Price, len(ids))
	for _, id := range ids {
		p, ok := c.cache[id]
		if !ok {
			return nil, errs.MissingPrice(id)
		}
		out[id] = p
	}
	return out, nil
}

// Requests reports how many price requests were sent.
func (c *Client) Requests() uint64 { return c.svc.Dispatched() }

func (c *Client) fetch(ctx context.Context, ids []string) (map[string]Price, error) {
	const op = "coingecko simple/price"

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("precision", "full")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, errs.E(errs.ErrConfig, op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.svc.Call(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.E(errs.ErrTransport, op, err)
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.Ef(errs.ErrRateLimitExceeded, op, "http %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return nil, errs.Ef(errs.ErrTransport, op, "http %d", resp.StatusCode)
	}

	var body map[string]struct {
		USD *float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errs.E(errs.ErrDecode, op, err)
	}
	// Unknown ids come back as {} or not at all; neither is cached.
	prices := make(map[string]Price, len(body))
	for id, p := range body {
		if p.USD != nil {
			prices[id] = Price{USD: *p.USD}
		}
	}
	return prices, nil
}
