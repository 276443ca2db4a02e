// Package soulbound enumerates the holders of a cw721 soulbound token.
package soulbound

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/dropcamp/pkg/contracts"
	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// PageLimit is both the all_tokens page size and the short-page threshold that ends enumeration.
const PageLimit = 100

// lookupConcurrency bounds all_nft_info lookups within one page.
const lookupConcurrency = 10

// ErrDuplicateToken is wrapped when the contract returns a token id twice.
var ErrDuplicateToken = errors.New("duplicate token id")

// Holder is one token and its owner at the pinned block.
type Holder struct {
	TokenID     string
	PatchName   string
	Owner       string
	SocialScore uint16
}

type allTokensQuery struct {
	AllTokens struct {
		StartAfter *string `json:"start_after,omitempty"`
		Limit      uint32  `json:"limit"`
	} `json:"all_tokens"`
}

type tokensResponse struct {
	Tokens []string `json:"tokens"`
}

type allNftInfoQuery struct {
	AllNftInfo struct {
		TokenID        string `json:"token_id"`
		IncludeExpired bool   `json:"include_expired"`
	} `json:"all_nft_info"`
}

// Extension is the soulbound token metadata.
type Extension struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	SocialScore uint16 `json:"social_score"`
}

type allNftInfoResponse struct {
	Access struct {
		Owner string `json:"owner"`
	} `json:"access"`
	Info struct {
		TokenURI  *string   `json:"token_uri"`
		Extension Extension `json:"extension"`
	} `json:"info"`
}

// Token queries one soulbound contract.
type Token struct {
	q       contracts.Querier
	address string
	logger  *zap.Logger
}

// New returns a querier for the contract at address.
func New(logger *zap.Logger, q contracts.Querier, address string) *Token {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Token{q: q, address: address, logger: logger.With(zap.String("contract", address))}
}

// Holders pages through all_tokens and resolves every id to its owner.
// Pages are fetched in order; lookups within a page run concurrently and land in completion order.
// Any failed lookup fails the whole enumeration.
func (t *Token) Holders(ctx context.Context) ([]Holder, error) {
	t.logger.Info("querying soulbound token owners")

	pool := pond.NewPool(lookupConcurrency, pond.WithQueueSize(PageLimit))
	defer pool.StopAndWait()

	seen := xsync.NewMap[string, struct{}]()
	var holders []Holder
	var startAfter *string

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids, err := t.page(ctx, startAfter)
		if err != nil {
			return nil, err
		}
		t.logger.Info("found soulbound tokens", zap.Int("count", len(ids)), zap.Stringp("startAfter", startAfter))
		if len(ids) == 0 {
			break
		}
		last := ids[len(ids)-1]
		startAfter = &last

		infos, err := t.lookupPage(ctx, pool, seen, ids)
		if err != nil {
			return nil, err
		}
		holders = append(holders, infos...)

		if len(ids) < PageLimit {
			break
		}
	}

	t.logger.Info("total soulbound token owners", zap.Int("count", len(holders)))
	return holders, nil
}

func (t *Token) page(ctx context.Context, startAfter *string) ([]string, error) {
	var q allTokensQuery
	q.AllTokens.StartAfter = startAfter
	q.AllTokens.Limit = PageLimit

	var resp tokensResponse
	if err := t.q.QueryContract(ctx, t.address, q, &resp); err != nil {
		return nil, fmt.Errorf("all_tokens: %w", err)
	}
	return resp.Tokens, nil
}

// lookupPage resolves ids concurrently. seen is shared by every page and rejects an id
// already claimed by another lookup.
func (t *Token) lookupPage(ctx context.Context, pool pond.Pool, seen *xsync.Map[string, struct{}], ids []string) ([]Holder, error) {
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var mu sync.Mutex
	out := make([]Holder, 0, len(ids))
	for _, id := range ids {
		group.SubmitErr(func() error {
			if _, loaded := seen.LoadOrStore(id, struct{}{}); loaded {
				return errs.E(errs.ErrContract, "soulbound all_tokens", fmt.Errorf("%w: %q", ErrDuplicateToken, id))
			}
			h, err := t.Holder(groupCtx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, h)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return out, nil
}

// Holder resolves a single token id.
func (t *Token) Holder(ctx context.Context, tokenID string) (Holder, error) {
	var q allNftInfoQuery
	q.AllNftInfo.TokenID = tokenID
	q.AllNftInfo.IncludeExpired = true

	var resp allNftInfoResponse
	if err := t.q.QueryContract(ctx, t.address, q, &resp); err != nil {
		return Holder{}, fmt.Errorf("all_nft_info %q: %w", tokenID, err)
	}
	h := Holder{
		TokenID:     tokenID,
		PatchName:   resp.Info.Extension.ID,
		Owner:       resp.Access.Owner,
		SocialScore: resp.Info.Extension.SocialScore,
	}
	t.logger.Debug("found soulbound token",
		zap.String("tokenId", h.TokenID),
		zap.String("patchName", h.PatchName),
		zap.String("owner", h.Owner),
		zap.Uint16("socialScore", h.SocialScore),
	)
	return h, nil
}
