package rpc

import (
	"context"

	queryv1beta1 "cosmossdk.io/api/cosmos/base/query/v1beta1"
	stakingv1beta1 "cosmossdk.io/api/cosmos/staking/v1beta1"
)

type (
	// Delegation is cosmos.staking.v1beta1.Delegation. Shares is a LegacyDec string.
	Delegation = stakingv1beta1.Delegation
	// DelegationResponse pairs a delegation with its balance in the bond denom.
	DelegationResponse = stakingv1beta1.DelegationResponse
)

// Staking reads cosmos.staking.v1beta1.
type Staking struct {
	q Querier
}

// NewStaking returns a staking query client.
func NewStaking(q Querier) *Staking { return &Staking{q: q} }

// Delegations returns the delegations of delegator. Entries without a delegation or a balance are kept
// as returned; callers filter them.
func (s *Staking) Delegations(ctx context.Context, delegator string) ([]*DelegationResponse, error) {
	req := &stakingv1beta1.QueryDelegatorDelegationsRequest{
		DelegatorAddr: delegator,
		Pagination:    &queryv1beta1.PageRequest{Limit: PageLimit},
	}
	var resp stakingv1beta1.QueryDelegatorDelegationsResponse
	if err := s.q.Query(ctx, StakingService, DelegatorDelegationsMethod, req, &resp); err != nil {
		return nil, err
	}
	return resp.DelegationResponses, nil
}
