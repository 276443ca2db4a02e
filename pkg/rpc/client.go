package rpc

import (
	"context"
	"net/http"

	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/canopy-network/dropcamp/pkg/service"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// Opts is the set of options for New.
type Opts struct {
	URL string
	// ChainID, when set, must match the chain id reported by the node.
	ChainID string
	// RateLimit caps requests per second to the node. Zero means unlimited.
	RateLimit int
	// Height pins an explicit block. Zero pins the current tip.
	Height     uint64
	HTTPClient *http.Client
}

// Client is a height-pinned ABCI query client. The pin is resolved once in New and
// every query carries it; there is no way to query another height.
// Copies share the pin and the rate limiter.
type Client struct {
	comet  *rpchttp.HTTP
	svc    *service.Limited[*http.Request, *http.Response]
	block  Block
	logger *zap.Logger
}

// New resolves the block pin and returns a client bound to it.
func New(ctx context.Context, logger *zap.Logger, o Opts) (*Client, error) {
	if o.URL == "" {
		return nil, errs.Ef(errs.ErrConfig, "rpc", "missing url")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	svc := service.NewHTTP(service.HTTPOpts{
		Client: o.HTTPClient,
		Limits: service.DefaultOpts(o.RateLimit),
	})
	comet, err := newCometClient(o.URL, svc)
	if err != nil {
		return nil, err
	}

	block, err := fetchBlock(ctx, comet, o.Height)
	if err != nil {
		return nil, err
	}
	if o.ChainID != "" && block.ChainID != o.ChainID {
		return nil, errs.Ef(errs.ErrConfig, "rpc", "node reports chain %q, want %q", block.ChainID, o.ChainID)
	}

	logger.Info("block pinned",
		zap.String("chainId", block.ChainID),
		zap.Uint64("height", block.Height),
		zap.Time("time", block.Time),
	)
	return &Client{comet: comet, svc: svc, block: block, logger: logger}, nil
}

// Block returns the pin.
func (c *Client) Block() Block { return c.block }

// Dispatched reports how many requests reached the node, including the pin lookup.
func (c *Client) Dispatched() uint64 { return c.svc.Dispatched() }

// QueryRaw runs service/method at the pinned height with already encoded request bytes.
func (c *Client) QueryRaw(ctx context.Context, service, method string, data []byte) ([]byte, error) {
	path := QueryPath(service, method)
	c.logger.Debug("abci query", zap.String("path", path), zap.Uint64("height", c.block.Height))

	res, err := c.comet.ABCIQueryWithOptions(ctx, path, data, rpcclient.ABCIQueryOptions{
		Height: int64(c.block.Height),
	})
	if err != nil {
		return nil, classify(ctx, path, err)
	}

	r := res.Response
	if r.Code != 0 {
		return nil, errs.Ef(errs.ErrContract, path, "code %d (%s): %s", r.Code, r.Codespace, r.Log)
	}
	return r.Value, nil
}

// Query runs service/method at the pinned height, encoding req and decoding into resp.
func (c *Client) Query(ctx context.Context, service, method string, req, resp proto.Message) error {
	path := QueryPath(service, method)

	data, err := proto.Marshal(req)
	if err != nil {
		return errs.E(errs.ErrEncode, path, err)
	}
	value, err := c.QueryRaw(ctx, service, method, data)
	if err != nil {
		return err
	}
	if err := proto.Unmarshal(value, resp); err != nil {
		return errs.E(errs.ErrDecode, path, err)
	}
	return nil
}
