// Package scheduler drives the periodic refresh cycle described in
// §4.5: page the leaderboard, score, enrich, re-filter, persist,
// publish — once immediately on start and then on every tick,
// adapting the teacher's job-runner loop to a single repeating cycle
// rather than a cron table of heterogeneous jobs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperalpha/traderscore/internal/bus"
	"github.com/hyperalpha/traderscore/internal/config"
	"github.com/hyperalpha/traderscore/internal/domain"
	"github.com/hyperalpha/traderscore/internal/gate"
	"github.com/hyperalpha/traderscore/internal/persistence"
	"github.com/hyperalpha/traderscore/internal/scoring"
	"github.com/hyperalpha/traderscore/internal/upstream"
)

// CycleResult reports the outcome of one period's refresh cycle,
// mirroring the teacher's JobResult shape.
type CycleResult struct {
	PeriodDays int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Success    bool
	Error      string
	RankedIn   int
	Selected   int
}

// Scheduler holds the repeating timer and drives sequential
// per-period cycles.
type Scheduler struct {
	cfg        config.Config
	client     *upstream.Client
	persister  persistence.Persister
	sink       bus.CandidateSink
	statsGate  *gate.Gate
	seriesGate *gate.Gate

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func New(cfg config.Config, client *upstream.Client, persister persistence.Persister, sink bus.CandidateSink) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		client:     client,
		persister:  persister,
		sink:       sink,
		statsGate:  gate.New(cfg.LeaderboardStatsConcurrency),
		seriesGate: gate.New(cfg.LeaderboardSeriesConcurrency),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs one cycle immediately, then again on every tick of
// cfg.RefreshMs, until Stop is called or ctx is canceled. In-flight
// cycles are allowed to complete; further ticks are suppressed once
// stopped.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer close(s.done)

	s.runAllPeriods(ctx)

	ticker := time.NewTicker(s.cfg.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.runAllPeriods(ctx)
		}
	}
}

// Stop cancels the timer; it does not interrupt an in-flight cycle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stop)
	s.running = false
	<-s.done
}

func (s *Scheduler) runAllPeriods(ctx context.Context) {
	for _, period := range s.cfg.Periods {
		if ctx.Err() != nil {
			return
		}
		result := s.RunCycle(ctx, period)
		if result.Success {
			log.Info().Int("period_days", period).Int("ranked", result.RankedIn).
				Dur("duration", result.Duration).Msg("refresh cycle complete")
		} else {
			log.Error().Int("period_days", period).Str("error", result.Error).
				Msg("refresh cycle failed")
		}
	}
}

// RunCycle executes one full refresh cycle for a single period, per
// the control flow described in §2: page, score, enrich, re-filter,
// persist, publish.
func (s *Scheduler) RunCycle(ctx context.Context, periodDays int) CycleResult {
	start := time.Now()
	result := CycleResult{PeriodDays: periodDays, StartTime: start}

	raw, err := s.pageAll(ctx, periodDays)
	if err != nil {
		return failCycle(result, start, err)
	}

	ranked := scoring.Score(raw, s.cfg.Scoring, s.cfg.SelectCount)
	if ctx.Err() != nil {
		return failCycle(result, start, ctx.Err())
	}

	enrichTarget := s.cfg.EnrichCount
	if enrichTarget < s.cfg.SelectCount*2 {
		enrichTarget = s.cfg.SelectCount * 2
	}
	if enrichTarget > len(ranked) {
		enrichTarget = len(ranked)
	}
	targets := ranked[:enrichTarget]

	statsByAddr, portfolioByAddr := s.enrich(ctx, targets, periodDays)
	if ctx.Err() != nil {
		return failCycle(result, start, ctx.Err())
	}

	withStats := scoring.ApplyStats(ranked, statsByAddr)
	final := scoring.RefilterAndRenormalize(withStats, s.cfg.Scoring, s.cfg.SelectCount)

	if err := scoring.ValidateRanked(final, s.cfg.SelectCount); err != nil {
		log.Warn().Err(err).Int("period_days", periodDays).Msg("scoring invariant violation detected")
	}

	if ctx.Err() != nil {
		return failCycle(result, start, ctx.Err())
	}

	if err := s.persister.ReplacePeriod(ctx, periodDays, final, portfolioByAddr); err != nil {
		return failCycle(result, start, err)
	}

	s.publishSelected(ctx, periodDays, final)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	result.Success = true
	result.RankedIn = len(final)
	result.Selected = countSelected(final)
	return result
}

func failCycle(result CycleResult, start time.Time, err error) CycleResult {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	result.Success = false
	result.Error = err.Error()
	return result
}

func countSelected(entries []domain.RankedEntry) int {
	n := 0
	for _, e := range entries {
		if e.Weight > 0 {
			n++
		}
	}
	return n
}

// pageAll pages the leaderboard until topN entries are collected or a
// short page signals end of data.
func (s *Scheduler) pageAll(ctx context.Context, periodDays int) ([]domain.RawLeaderboardEntry, error) {
	var all []domain.RawLeaderboardEntry
	pageNum := 1
	for len(all) < s.cfg.TopN {
		page, hasMore, err := s.client.FetchPage(ctx, periodDays, pageNum, s.cfg.PageSize, upstream.SortOrder(s.cfg.Sort))
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if !hasMore {
			break
		}
		pageNum++
	}
	return all, nil
}

// enrich fans out per-address stats and portfolio-series calls through
// the two bounded gates. Per-address failures omit that address from
// the result map but never abort the cycle.
func (s *Scheduler) enrich(ctx context.Context, targets []domain.RankedEntry, periodDays int) (map[string]*domain.AddressStats, map[string][]domain.WindowSeries) {
	var mu sync.Mutex
	statsByAddr := make(map[string]*domain.AddressStats, len(targets))
	portfolioByAddr := make(map[string][]domain.WindowSeries, len(targets))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		gate.RunAll(ctx, s.statsGate, targets, func(ctx context.Context, e domain.RankedEntry) {
			stat, err := s.client.FetchAddressStat(ctx, e.Address, periodDays)
			if err != nil {
				log.Warn().Str("address", e.Address).Err(err).Msg("address stat fetch failed")
				return
			}
			if stat == nil {
				return
			}
			mu.Lock()
			statsByAddr[e.Address] = stat
			mu.Unlock()
		})
	}()

	go func() {
		defer wg.Done()
		gate.RunAll(ctx, s.seriesGate, targets, func(ctx context.Context, e domain.RankedEntry) {
			series, err := s.client.FetchPortfolioSeries(ctx, e.Address)
			if err != nil {
				log.Warn().Str("address", e.Address).Err(err).Msg("portfolio series fetch failed")
				return
			}
			mu.Lock()
			portfolioByAddr[e.Address] = series
			mu.Unlock()
		})
	}()

	wg.Wait()
	return statsByAddr, portfolioByAddr
}

// publishSelected publishes a CandidateEvent per entry that survived
// with positive weight.
func (s *Scheduler) publishSelected(ctx context.Context, periodDays int, entries []domain.RankedEntry) {
	now := time.Now()
	for _, e := range entries {
		if e.Weight <= 0 {
			continue
		}
		event := bus.EventFromRanked(periodDays, e, now)
		if err := s.sink.Publish(ctx, event); err != nil {
			log.Warn().Str("address", e.Address).Err(err).Msg("publish failed")
		}
	}
}
