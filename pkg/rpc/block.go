package rpc

import (
	"context"
	"math"
	"time"

	"github.com/canopy-network/dropcamp/pkg/errs"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
)

// Block is the pin every query of a run is evaluated at.
type Block struct {
	ChainID string
	Height  uint64
	// Time is the header time as reported by the node.
	Time time.Time
}

// fetchBlock resolves the header at height, or the tip when height is 0.
func fetchBlock(ctx context.Context, c *rpchttp.HTTP, height uint64) (Block, error) {
	if height > math.MaxInt64 {
		return Block{}, errs.Ef(errs.ErrConfig, "rpc block", "height %d out of range", height)
	}
	var at *int64
	if height > 0 {
		h := int64(height)
		at = &h
	}

	res, err := c.Block(ctx, at)
	if err != nil {
		return Block{}, classify(ctx, "rpc block", err)
	}
	if res == nil || res.Block == nil {
		return Block{}, errs.Ef(errs.ErrDecode, "block header", "empty block")
	}

	h := res.Block.Header
	if h.Height <= 0 {
		return Block{}, errs.Ef(errs.ErrDecode, "block header", "invalid height %d", h.Height)
	}
	if h.Time.IsZero() {
		return Block{}, errs.Ef(errs.ErrDecode, "block header", "missing timestamp")
	}
	return Block{
		ChainID: h.ChainID,
		Height:  uint64(h.Height),
		Time:    h.Time.UTC(),
	}, nil
}
