package rpc

import (
	"context"
	"errors"
	"net/http"

	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/canopy-network/dropcamp/pkg/service"
	"github.com/canopy-network/dropcamp/pkg/utils"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	rpctypes "github.com/cometbft/cometbft/rpc/jsonrpc/types"
)

// throttledTransport sends every CometBFT request through a throttled HTTP service.
// Failures are never retried: a 429 is RateLimitExceeded, anything else non-2xx is Transport.
type throttledTransport struct {
	svc *service.Limited[*http.Request, *http.Response]
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	op := "rpc " + req.URL.Host

	resp, err := t.svc.Call(req.Context(), req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errs.E(errs.ErrTransport, op, err)
	}

	var status error
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		status = errs.Ef(errs.ErrRateLimitExceeded, op, "http %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		status = errs.Ef(errs.ErrTransport, op, "server %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		status = errs.Ef(errs.ErrTransport, op, "http %d", resp.StatusCode)
	}
	if status != nil {
		_ = utils.DrainAndClose(resp.Body)
		return nil, status
	}
	return resp, nil
}

// newCometClient returns a CometBFT RPC client throttled by svc.
func newCometClient(endpoint string, svc *service.Limited[*http.Request, *http.Response]) (*rpchttp.HTTP, error) {
	hc := &http.Client{Transport: &throttledTransport{svc: svc}}
	c, err := rpchttp.NewWithClient(endpoint, "/websocket", hc)
	if err != nil {
		return nil, errs.E(errs.ErrConfig, "rpc", err)
	}
	return c, nil
}

// classify gives every error out of the CometBFT client a kind. Kinds set by the transport
// pass through, JSON-RPC error replies are Transport and anything else failed to decode.
func classify(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var kinded *errs.Error
	if errors.As(err, &kinded) {
		return kinded
	}
	var rpcErr *rpctypes.RPCError
	if errors.As(err, &rpcErr) {
		return errs.E(errs.ErrTransport, op, rpcErr)
	}
	return errs.E(errs.ErrDecode, op, err)
}
