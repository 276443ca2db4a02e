package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/canopy-network/dropcamp/pkg/astrovault"
	"github.com/canopy-network/dropcamp/pkg/coin"
	"github.com/canopy-network/dropcamp/pkg/coingecko"
	"github.com/canopy-network/dropcamp/pkg/contracts/archid"
	"github.com/canopy-network/dropcamp/pkg/contracts/liquid"
	"github.com/canopy-network/dropcamp/pkg/contracts/soulbound"
	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/canopy-network/dropcamp/pkg/exporters"
	"github.com/canopy-network/dropcamp/pkg/ranking"
	"github.com/canopy-network/dropcamp/pkg/rpc"
	"github.com/canopy-network/dropcamp/pkg/rpc/rpctest"
	"github.com/canopy-network/dropcamp/pkg/service"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	soulboundAddr = "archway1soulbound"
	archIDAddr    = "archway1archid"
	liquidAddr    = "archway1liquid"
)

// env is a fully mocked chain plus HTTP upstreams.
type env struct {
	t    *testing.T
	node *rpctest.Node

	mu     sync.Mutex
	owners map[string]string // token id -> owner
	ids    []string

	prices        map[string]string
	priceRequests atomic.Int32
	statsRequests atomic.Int32
	failStatsAt   atomic.Int32

	priceSrv *httptest.Server
	astroSrv *httptest.Server
}

func newEnv(t *testing.T) *env {
	e := &env{
		t:      t,
		node:   rpctest.NewNode(t),
		owners: map[string]string{},
		prices: map[string]string{},
	}
	e.node.HandleContract(soulboundAddr, e.soulbound)
	e.node.HandleContract(archIDAddr, func(json.RawMessage) (any, error) {
		return map[string]any{"names": nil}, nil
	})
	e.node.HandleContract(liquidAddr, func(q json.RawMessage) (any, error) {
		if strings.Contains(string(q), "token_info") {
			return map[string]any{"name": "sARCH", "symbol": "sARCH", "decimals": 18, "total_supply": "0"}, nil
		}
		return map[string]any{"balance": "1000000000000000000"}, nil
	})

	pr := mux.NewRouter()
	pr.HandleFunc("/api/v3/simple/price", e.servePrices).
		Methods(http.MethodGet).
		Queries("vs_currencies", "usd")
	e.priceSrv = httptest.NewServer(pr)
	t.Cleanup(e.priceSrv.Close)

	ar := mux.NewRouter()
	ar.HandleFunc("/wallet/stats", e.serveStats).Methods(http.MethodGet).Queries("address", "{address}")
	ar.HandleFunc("/wallet/tvl", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"address": mux.Vars(r)["address"], "tvl": 10.5})
	}).Methods(http.MethodGet).Queries("address", "{address}")
	e.astroSrv = httptest.NewServer(ar)
	t.Cleanup(e.astroSrv.Close)

	return e
}

func (e *env) addHolders(n int, owner func(i int) string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%04d", len(e.ids))
		e.ids = append(e.ids, id)
		e.owners[id] = owner(i)
	}
}

func (e *env) setPrice(id, usd string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[id] = usd
}

func (e *env) soulbound(q json.RawMessage) (any, error) {
	var msg struct {
		AllTokens *struct {
			StartAfter string `json:"start_after"`
			Limit      int    `json:"limit"`
		} `json:"all_tokens"`
		AllNftInfo *struct {
			TokenID string `json:"token_id"`
		} `json:"all_nft_info"`
	}
	if err := json.Unmarshal(q, &msg); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case msg.AllTokens != nil:
		start := 0
		if msg.AllTokens.StartAfter != "" {
			start = sort.SearchStrings(e.ids, msg.AllTokens.StartAfter) + 1
		}
		end := min(start+msg.AllTokens.Limit, len(e.ids))
		tokens := []string{}
		if start < end {
			tokens = e.ids[start:end]
		}
		return map[string]any{"tokens": tokens}, nil
	case msg.AllNftInfo != nil:
		owner, ok := e.owners[msg.AllNftInfo.TokenID]
		if !ok {
			return nil, errors.New("token not found")
		}
		return map[string]any{
			"access": map[string]any{"owner": owner, "approvals": []any{}},
			"info": map[string]any{
				"token_uri": nil,
				"extension": map[string]any{"id": "A", "description": "patch", "social_score": 42},
			},
		}, nil
	}
	return nil, errors.New("unknown query")
}

func (e *env) servePrices(w http.ResponseWriter, r *http.Request) {
	e.priceRequests.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	var parts []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if p, ok := e.prices[id]; ok {
			parts = append(parts, fmt.Sprintf("%q:{\"usd\":%s}", id, p))
		}
	}
	_, _ = w.Write([]byte("{" + strings.Join(parts, ",") + "}"))
}

func (e *env) serveStats(w http.ResponseWriter, r *http.Request) {
	n := e.statsRequests.Add(1)
	if at := e.failStatsAt.Load(); at > 0 && n == at {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"hasLPd": true, "has_traded": false})
}

func testRanking() *ranking.Ranking {
	a := ranking.Activity{Weight: 1, Curve: ranking.Curve{Numerator: 100, Denominator: 50}}
	r := &ranking.Ranking{}
	r.Social.Weight = 1
	r.Archway.Activities.Stake = a
	r.Archway.Activities.IBC = a
	r.Ecosystem.Activities.ArchID = a
	r.Ecosystem.Activities.Astrovault = a
	r.Ecosystem.Activities.LiquidFinance = a
	return r
}

type wired struct {
	rpc    *rpc.Client
	source *soulbound.Token
	prices *coingecko.Client
	opts   Opts
}

func (e *env) wire(tokens coin.TokenMap, names ...string) wired {
	e.t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	client, err := rpc.New(ctx, logger, rpc.Opts{URL: e.node.URL})
	require.NoError(e.t, err)
	wasm := rpc.NewCosmWasm(client)

	prices := coingecko.New(logger, coingecko.Opts{
		URL:    e.priceSrv.URL + "/api/v3",
		Limits: &service.Opts{Buffer: 10, Concurrency: 5},
	})
	astro, err := astrovault.New(logger, astrovault.Opts{URL: e.astroSrv.URL})
	require.NoError(e.t, err)

	return wired{
		rpc:    client,
		source: soulbound.New(logger, wasm, soulboundAddr),
		prices: prices,
		opts: Opts{
			Output:    filepath.Join(e.t.TempDir(), "out"),
			Exporters: names,
			Deps: exporters.Deps{
				Ranking:    testRanking(),
				Decimals:   18,
				Bank:       rpc.NewBank(client),
				Prices:     prices,
				Tokens:     tokens,
				Staking:    rpc.NewStaking(client),
				Names:      archid.New(logger, wasm, archIDAddr),
				Liquid:     liquid.New(logger, wasm, liquidAddr),
				Astrovault: astro,
			},
		},
	}
}

func csvLines(t *testing.T, dir, name string) []string {
	b, err := os.ReadFile(filepath.Join(dir, name+".csv"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

// S1
func TestTwoPageEnumeration(t *testing.T) {
	e := newEnv(t)
	e.addHolders(103, func(int) string { return "cosmos1x" })
	w := e.wire(nil, exporters.SocialsName)

	holders, err := w.source.Holders(context.Background())
	require.NoError(t, err)
	require.Len(t, holders, 103)
	for _, h := range holders {
		assert.Equal(t, "cosmos1x", h.Owner)
	}

	sum, err := Run(context.Background(), zap.NewNop(), w.source, w.opts)
	require.NoError(t, err)
	assert.Equal(t, 103, sum.Holders)
	assert.Equal(t, uint64(103), sum.Rows[exporters.SocialsName])

	lines := csvLines(t, w.opts.Output, "socials")
	require.Len(t, lines, 104)
	assert.Equal(t, "address;ranking;patch_name;social_score", lines[0])
	assert.Equal(t, "cosmos1x;42.00;A;42", lines[1])
}

func TestAllExportersPinnedHeight(t *testing.T) {
	e := newEnv(t)
	e.addHolders(5, func(i int) string { return fmt.Sprintf("archway1holder%d", i) })
	e.setPrice("archway", "0.1")
	for i := 0; i < 5; i++ {
		e.node.SetBalances(fmt.Sprintf("archway1holder%d", i), &rpc.Coin{Denom: "aarch", Amount: "20000000000000000000"})
	}
	tokens := coin.TokenMap{"aarch": {Denom: "ARCH", Decimals: 18, CoingeckoID: "archway"}}
	w := e.wire(tokens)
	pinned := w.rpc.Block().Height

	sum, err := Run(context.Background(), zap.NewNop(), w.source, w.opts)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Holders)

	headers := map[string]string{
		"socials":        "address;ranking;patch_name;social_score",
		"balances":       "address;ranking;usd_total;balances",
		"staking":        "address;ranking;total_delegated;validators",
		"archid":         "address;ranking;name_count;names",
		"liquid-finance": "address;ranking;balance",
		"astrovault":     "address;ranking;has_lpd;has_traded;tvl",
	}
	for name, header := range headers {
		lines := csvLines(t, w.opts.Output, name)
		require.Len(t, lines, 6, name)
		assert.Equal(t, header, lines[0], name)
		assert.Equal(t, uint64(5), sum.Rows[name], name)
	}
	assert.Contains(t, csvLines(t, w.opts.Output, "balances"), "archway1holder0;3.85;2.00;20.00ARCH")

	for _, h := range e.node.QueryHeights() {
		require.Equal(t, pinned, h)
	}
	assert.Equal(t, int32(1), e.priceRequests.Load())
}

// S3
func TestMissingPriceFailsRun(t *testing.T) {
	e := newEnv(t)
	e.addHolders(1, func(int) string { return "archway1a" })
	e.node.SetBalances("archway1a",
		&rpc.Coin{Denom: "ua", Amount: "1000000"},
		&rpc.Coin{Denom: "ub", Amount: "1000000"},
	)
	e.setPrice("a", "1.5")
	tokens := coin.TokenMap{
		"ua": {Denom: "A", Decimals: 6, CoingeckoID: "a"},
		"ub": {Denom: "B", Decimals: 6, CoingeckoID: "b"},
	}
	w := e.wire(tokens, exporters.BalancesName)

	_, err := Run(context.Background(), zap.NewNop(), w.source, w.opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrMissingPrice))
	assert.Contains(t, err.Error(), `"b"`)

	assert.Equal(t, []string{"address;ranking;usd_total;balances"}, csvLines(t, w.opts.Output, "balances"))
}

// S5
func TestFailureStopsRun(t *testing.T) {
	e := newEnv(t)
	e.addHolders(10, func(i int) string { return fmt.Sprintf("archway1holder%d", i) })
	e.failStatsAt.Store(3)
	w := e.wire(nil, exporters.SocialsName, exporters.AstrovaultName)
	w.opts.HolderConcurrency = 1

	_, err := Run(context.Background(), zap.NewNop(), w.source, w.opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrTransport))
	assert.Contains(t, err.Error(), "astrovault exporter")

	// the first two holders are complete; later ones may or may not be
	astro := csvLines(t, w.opts.Output, "astrovault")
	assert.GreaterOrEqual(t, len(astro), 3)
	assert.Less(t, len(astro), 11)
	socials := csvLines(t, w.opts.Output, "socials")
	assert.GreaterOrEqual(t, len(socials), 3)
	assert.Less(t, len(socials), 11)
	assert.Less(t, e.statsRequests.Load(), int32(10))
}

// S6
func TestPricesFetchedOnce(t *testing.T) {
	e := newEnv(t)
	e.addHolders(2, func(i int) string { return fmt.Sprintf("archway1holder%d", i) })
	e.setPrice("x", "1")
	e.setPrice("y", "2")
	e.setPrice("z", "3")
	tokens := coin.TokenMap{
		"ux": {Denom: "X", Decimals: 6, CoingeckoID: "x"},
		"uy": {Denom: "Y", Decimals: 6, CoingeckoID: "y"},
		"uz": {Denom: "Z", Decimals: 6, CoingeckoID: "z"},
	}
	for i := 0; i < 2; i++ {
		e.node.SetBalances(fmt.Sprintf("archway1holder%d", i),
			&rpc.Coin{Denom: "ux", Amount: "1000000"},
			&rpc.Coin{Denom: "uy", Amount: "1000000"},
			&rpc.Coin{Denom: "uz", Amount: "1000000"},
		)
	}
	w := e.wire(tokens, exporters.BalancesName)

	_, err := Run(context.Background(), zap.NewNop(), w.source, w.opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), e.priceRequests.Load())
	assert.Equal(t, uint64(1), w.prices.Requests())

	lines := csvLines(t, w.opts.Output, "balances")
	require.Len(t, lines, 3)
	for _, l := range lines[1:] {
		assert.True(t, strings.HasSuffix(l, ";6.00;1.00X,1.00Y,1.00Z"), l)
	}
}

func TestEnumerationFailure(t *testing.T) {
	e := newEnv(t)
	e.addHolders(3, func(int) string { return "archway1a" })
	w := e.wire(nil, exporters.SocialsName)
	e.node.HandleContract(soulboundAddr, func(json.RawMessage) (any, error) {
		return nil, errors.New("contract paused")
	})

	_, err := Run(context.Background(), zap.NewNop(), w.source, w.opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrContract))
	assert.Equal(t, []string{"address;ranking;patch_name;social_score"}, csvLines(t, w.opts.Output, "socials"))
}

func TestRunRejectsUnknownExporter(t *testing.T) {
	e := newEnv(t)
	w := e.wire(nil, "nft")

	_, err := Run(context.Background(), zap.NewNop(), w.source, w.opts)
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestRunNoHolders(t *testing.T) {
	e := newEnv(t)
	w := e.wire(nil, exporters.SocialsName)

	sum, err := Run(context.Background(), zap.NewNop(), w.source, w.opts)
	require.NoError(t, err)
	assert.Zero(t, sum.Holders)
	assert.Equal(t, []string{"address;ranking;patch_name;social_score"}, csvLines(t, w.opts.Output, "socials"))
}

func TestRunCancelled(t *testing.T) {
	e := newEnv(t)
	e.addHolders(3, func(int) string { return "archway1a" })
	w := e.wire(nil, exporters.SocialsName)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, zap.NewNop(), w.source, w.opts)
	assert.ErrorIs(t, err, context.Canceled)
}
