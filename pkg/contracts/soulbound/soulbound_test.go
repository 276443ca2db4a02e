package soulbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeContract is an in-memory cw721 keyed by sorted token id.
type fakeContract struct {
	ids      []string
	owner    func(id string) string
	fail     func(id string) error
	pages    atomic.Int32
	lookups  atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32

	mu          sync.Mutex
	startAfters []string
}

func (f *fakeContract) QueryContract(ctx context.Context, address string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var q struct {
		AllTokens *struct {
			StartAfter *string `json:"start_after"`
			Limit      int     `json:"limit"`
		} `json:"all_tokens"`
		AllNftInfo *struct {
			TokenID        string `json:"token_id"`
			IncludeExpired bool   `json:"include_expired"`
		} `json:"all_nft_info"`
	}
	if err := json.Unmarshal(raw, &q); err != nil {
		return err
	}

	var reply any
	switch {
	case q.AllTokens != nil:
		f.pages.Add(1)
		start := 0
		f.mu.Lock()
		if q.AllTokens.StartAfter != nil {
			f.startAfters = append(f.startAfters, *q.AllTokens.StartAfter)
			start = sort.SearchStrings(f.ids, *q.AllTokens.StartAfter) + 1
		} else {
			f.startAfters = append(f.startAfters, "")
		}
		f.mu.Unlock()
		end := min(start+q.AllTokens.Limit, len(f.ids))
		tokens := []string{}
		if start < len(f.ids) {
			tokens = f.ids[start:end]
		}
		reply = map[string]any{"tokens": tokens}
	case q.AllNftInfo != nil:
		if !q.AllNftInfo.IncludeExpired {
			return errors.New("include_expired not set")
		}
		n := f.inFlight.Add(1)
		defer f.inFlight.Add(-1)
		for {
			p := f.peak.Load()
			if n <= p || f.peak.CompareAndSwap(p, n) {
				break
			}
		}
		f.lookups.Add(1)
		id := q.AllNftInfo.TokenID
		if f.fail != nil {
			if err := f.fail(id); err != nil {
				return err
			}
		}
		reply = map[string]any{
			"access": map[string]any{"owner": f.owner(id), "approvals": []any{}},
			"info": map[string]any{
				"token_uri": nil,
				"extension": map[string]any{"id": "patch-" + id, "description": "d", "social_score": 42},
			},
		}
	default:
		return fmt.Errorf("unexpected query %s", raw)
	}

	bz, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return json.Unmarshal(bz, out)
}

func tokenIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%05d", i)
	}
	return ids
}

func constOwner(string) string { return "archway1x" }

func TestHoldersTwoPages(t *testing.T) {
	f := &fakeContract{ids: tokenIDs(103), owner: constOwner}
	tok := New(zap.NewNop(), f, "archway1soulbound")

	holders, err := tok.Holders(context.Background())
	require.NoError(t, err)
	require.Len(t, holders, 103)
	assert.Equal(t, int32(2), f.pages.Load())

	got := make([]string, 0, len(holders))
	for _, h := range holders {
		assert.Equal(t, "archway1x", h.Owner)
		assert.Equal(t, uint16(42), h.SocialScore)
		assert.Equal(t, "patch-"+h.TokenID, h.PatchName)
		got = append(got, h.TokenID)
	}
	sort.Strings(got)
	assert.Equal(t, f.ids, got)
	assert.Equal(t, []string{"", "00099"}, f.startAfters)
}

func TestHoldersFullLastPageTriggersEmptyRound(t *testing.T) {
	f := &fakeContract{ids: tokenIDs(200), owner: constOwner}
	holders, err := New(nil, f, "c").Holders(context.Background())
	require.NoError(t, err)
	assert.Len(t, holders, 200)
	assert.Equal(t, int32(3), f.pages.Load())
}

func TestHoldersEmptyContract(t *testing.T) {
	f := &fakeContract{owner: constOwner}
	holders, err := New(nil, f, "c").Holders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, holders)
	assert.Equal(t, int32(1), f.pages.Load())
}

func TestHoldersLookupConcurrency(t *testing.T) {
	f := &fakeContract{ids: tokenIDs(250), owner: constOwner}
	_, err := New(nil, f, "c").Holders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(250), f.lookups.Load())
	assert.LessOrEqual(t, f.peak.Load(), int32(lookupConcurrency))
}

func TestHoldersLookupFailureFailsAll(t *testing.T) {
	boom := errs.Ef(errs.ErrContract, "all_nft_info", "token not found")
	f := &fakeContract{
		ids:   tokenIDs(150),
		owner: constOwner,
		fail: func(id string) error {
			if id == "00120" {
				return boom
			}
			return nil
		},
	}
	holders, err := New(nil, f, "c").Holders(context.Background())
	require.Error(t, err)
	assert.Nil(t, holders)
	assert.True(t, errors.Is(err, errs.ErrContract))
	assert.Contains(t, err.Error(), "00120")
}

// duplicateContract returns the same page twice.
type duplicateContract struct {
	fakeContract
}

func (d *duplicateContract) QueryContract(ctx context.Context, address string, payload any, out any) error {
	raw, _ := json.Marshal(payload)
	if json.Valid(raw) && string(raw[:14]) == `{"all_tokens":` {
		return json.Unmarshal([]byte(fmt.Sprintf(`{"tokens":%s}`, mustJSON(d.ids))), out)
	}
	return d.fakeContract.QueryContract(ctx, address, payload, out)
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestHoldersDuplicateTokenAcrossPages(t *testing.T) {
	d := &duplicateContract{fakeContract{ids: tokenIDs(PageLimit), owner: constOwner}}
	_, err := New(nil, d, "c").Holders(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateToken))
	assert.True(t, errors.Is(err, errs.ErrContract))
}

func TestHoldersDuplicateTokenWithinPage(t *testing.T) {
	f := &fakeContract{ids: []string{"0001", "0002", "0002", "0003"}, owner: constOwner}
	_, err := New(nil, f, "c").Holders(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateToken))
	assert.Contains(t, err.Error(), `"0002"`)
}

func TestHoldersCancelled(t *testing.T) {
	f := &fakeContract{ids: tokenIDs(10), owner: constOwner}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.fail = func(string) error { return ctx.Err() }

	_, err := New(nil, f, "c").Holders(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
