package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperalpha/traderscore/internal/bus"
	"github.com/hyperalpha/traderscore/internal/config"
	"github.com/hyperalpha/traderscore/internal/domain"
	"github.com/hyperalpha/traderscore/internal/upstream"
)

type fakePersister struct {
	mu       sync.Mutex
	calls    int
	lastDays int
	lastLen  int
}

func (f *fakePersister) ReplacePeriod(ctx context.Context, periodDays int, ranked []domain.RankedEntry, portfolioByAddress map[string][]domain.WindowSeries) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastDays = periodDays
	f.lastLen = len(ranked)
	return nil
}

func (f *fakePersister) ReadRanked(ctx context.Context, periodDays, limit int) ([]domain.RankedEntry, error) {
	return nil, nil
}

func (f *fakePersister) ReadSelected(ctx context.Context, periodDays, limit int) ([]domain.RankedEntry, error) {
	return nil, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []bus.CandidateEvent
}

func (f *fakeSink) Publish(ctx context.Context, event bus.CandidateEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("pageNum")
		if page != "1" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"address":"0xAAA","winRate":0.6,"executedOrders":50,"realizedPnl":1000,"remark":"alice","labels":["verified"],"pnlList":[[1000,10],[2000,20]]},
			{"address":"0xBBB","winRate":0.5,"executedOrders":30,"realizedPnl":500,"remark":"bob","labels":[],"pnlList":[[1000,5],[2000,8]]}
		]}`))
	})
	mux.HandleFunc("/leaderboard/query-addr-stat/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"winRate":0.65,"openPosCount":1,"closePosCount":80,"avgPosDuration":12.5,"totalPnl":1000,"maxDrawdown":0.1}}`))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[["day", {"pnlHistory":[[1000,1]], "accountValueHistory":[[1000,100]]}]]`))
	})
	return httptest.NewServer(mux)
}

func testConfig(baseURL string) config.Config {
	cfg := config.Default()
	cfg.LeaderboardBaseURL = baseURL + "/leaderboard"
	cfg.InfoURL = baseURL + "/info"
	cfg.TopN = 10
	cfg.SelectCount = 2
	cfg.EnrichCount = 2
	cfg.PageSize = 100
	return cfg
}

func TestRunCyclePagesScoresEnrichesPersistsPublishes(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	cfg := testConfig(server.URL)
	upCfg := upstream.DefaultConfig()
	upCfg.BaseURL = cfg.LeaderboardBaseURL
	upCfg.InfoURL = cfg.InfoURL
	client := upstream.NewClient(upCfg)

	persister := &fakePersister{}
	sink := &fakeSink{}

	s := New(cfg, client, persister, sink)

	result := s.RunCycle(context.Background(), 30)

	require.True(t, result.Success, "cycle error: %s", result.Error)
	assert.Equal(t, 2, result.RankedIn)
	assert.Equal(t, 1, persister.calls)
	assert.Equal(t, 30, persister.lastDays)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.NotEmpty(t, sink.events)
}

func TestStartRunsImmediatelyThenStops(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RefreshMs = 60_000
	upCfg := upstream.DefaultConfig()
	upCfg.BaseURL = cfg.LeaderboardBaseURL
	upCfg.InfoURL = cfg.InfoURL
	client := upstream.NewClient(upCfg)

	persister := &fakePersister{}
	sink := &fakeSink{}
	s := New(cfg, client, persister, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		persister.mu.Lock()
		defer persister.mu.Unlock()
		return persister.calls >= 1
	}, time.Second, 10*time.Millisecond)

	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestCountSelectedCountsPositiveWeightOnly(t *testing.T) {
	entries := []domain.RankedEntry{
		{Weight: 0.6},
		{Weight: 0},
		{Weight: 0.4},
	}
	assert.Equal(t, 2, countSelected(entries))
}

// newCountingTestServer returns n distinctly-addressed leaderboard
// entries and records which addresses the stats endpoint was called
// for, so callers can pin how many candidates actually got enriched.
func newCountingTestServer(t *testing.T, n int) (*httptest.Server, *sync.Map) {
	t.Helper()
	statCalls := &sync.Map{}

	mux := http.NewServeMux()
	mux.HandleFunc("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("pageNum")
		w.Header().Set("Content-Type", "application/json")
		if page != "1" {
			w.Write([]byte(`{"data":[]}`))
			return
		}
		var sb strings.Builder
		sb.WriteString(`{"data":[`)
		for i := 0; i < n; i++ {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(fmt.Sprintf(
				`{"address":"0xADDR%02d","winRate":0.6,"executedOrders":40,"realizedPnl":%d,"remark":"","labels":[],"pnlList":[[1000,10],[2000,20]]}`,
				i, 1000-i))
		}
		sb.WriteString(`]}`)
		w.Write([]byte(sb.String()))
	})
	mux.HandleFunc("/leaderboard/query-addr-stat/", func(w http.ResponseWriter, r *http.Request) {
		addr := strings.TrimPrefix(r.URL.Path, "/leaderboard/query-addr-stat/")
		statCalls.Store(addr, true)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"winRate":0.65,"openPosCount":1,"closePosCount":40,"avgPosDuration":12.5,"totalPnl":1000,"maxDrawdown":0.1}}`))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[["day", {"pnlHistory":[[1000,1]], "accountValueHistory":[[1000,100]]}]]`))
	})
	return httptest.NewServer(mux), statCalls
}

func countMapLen(m *sync.Map) int {
	n := 0
	m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// TestRunCycleEnrichesSelectCountTimesTwo pins §4.5 step 3's
// enrichTarget = min(len(ranked), max(enrichCount, selectCount*2))
// formula: with enrichCount below selectCount*2 and more ranked
// entries than selectCount*2, exactly selectCount*2 candidates must be
// enriched, not just enrichCount.
func TestRunCycleEnrichesSelectCountTimesTwo(t *testing.T) {
	server, statCalls := newCountingTestServer(t, 6)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.TopN = 100
	cfg.SelectCount = 2
	cfg.EnrichCount = 1 // below selectCount*2 = 4
	upCfg := upstream.DefaultConfig()
	upCfg.BaseURL = cfg.LeaderboardBaseURL
	upCfg.InfoURL = cfg.InfoURL
	client := upstream.NewClient(upCfg)

	persister := &fakePersister{}
	sink := &fakeSink{}
	s := New(cfg, client, persister, sink)

	result := s.RunCycle(context.Background(), 30)
	require.True(t, result.Success, "cycle error: %s", result.Error)

	assert.Equal(t, cfg.SelectCount*2, countMapLen(statCalls))
}

func TestRunCycleFailsWhenPagingErrors(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	upCfg := upstream.DefaultConfig()
	upCfg.BaseURL = cfg.LeaderboardBaseURL
	upCfg.InfoURL = cfg.InfoURL
	upCfg.RequestTimeout = 200 * time.Millisecond
	client := upstream.NewClient(upCfg)

	persister := &fakePersister{}
	sink := &fakeSink{}
	s := New(cfg, client, persister, sink)

	result := s.RunCycle(context.Background(), 30)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
