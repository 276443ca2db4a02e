// Package archid resolves ArchID domain names owned by an address.
package archid

import (
	"context"
	"fmt"

	"github.com/canopy-network/dropcamp/pkg/contracts"
	"go.uber.org/zap"
)

type resolveAddressQuery struct {
	ResolveAddress struct {
		Address string `json:"address"`
	} `json:"resolve_address"`
}

type resolveAddressResponse struct {
	Names []string `json:"names"`
}

// Registry queries the ArchID name registry contract.
type Registry struct {
	q       contracts.Querier
	address string
	logger  *zap.Logger
}

// New returns a registry querier for the contract at address.
func New(logger *zap.Logger, q contracts.Querier, address string) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{q: q, address: address, logger: logger}
}

// Names returns the domains resolving to address; none is an empty slice.
func (r *Registry) Names(ctx context.Context, address string) ([]string, error) {
	var q resolveAddressQuery
	q.ResolveAddress.Address = address

	var resp resolveAddressResponse
	if err := r.q.QueryContract(ctx, r.address, q, &resp); err != nil {
		return nil, fmt.Errorf("archid resolve_address: %w", err)
	}
	if resp.Names == nil {
		resp.Names = []string{}
	}
	r.logger.Debug("found ArchID names", zap.String("address", address), zap.Int("count", len(resp.Names)))
	return resp.Names, nil
}
