// Package bus is the downstream publish surface (§6): a CandidateSink
// publishes one CandidateEvent per selected trader. Delivery is
// at-most-once; the core makes one attempt and logs failure rather
// than retrying or blocking the cycle.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hyperalpha/traderscore/internal/domain"
)

// CandidateEvent is the wire shape published per top-selectCount entry.
type CandidateEvent struct {
	Address   string         `json:"address"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"ts"`
	Tags      []string       `json:"tags"`
	Nickname  string         `json:"nickname,omitempty"`
	ScoreHint float64        `json:"score_hint"`
	Meta      CandidateMeta  `json:"meta"`
}

// CandidateMeta carries the leaderboard context a downstream consumer
// needs without re-reading persisted state.
type CandidateMeta struct {
	Leaderboard LeaderboardMeta `json:"leaderboard"`
}

type LeaderboardMeta struct {
	PeriodDays     int      `json:"period_days"`
	Rank           int      `json:"rank"`
	Weight         float64  `json:"weight"`
	Score          float64  `json:"score"`
	WinRate        float64  `json:"winRate"`
	ExecutedOrders int      `json:"executedOrders"`
	RealizedPnl    float64  `json:"realizedPnl"`
	PnlConsistency float64  `json:"pnlConsistency"`
	Efficiency     float64  `json:"efficiency"`
	Labels         []string `json:"labels"`
}

// CandidateSink is the narrow interface the scheduler publishes
// through.
type CandidateSink interface {
	Publish(ctx context.Context, event CandidateEvent) error
}

// EventFromRanked builds the wire event for one selected entry.
func EventFromRanked(periodDays int, e domain.RankedEntry, now time.Time) CandidateEvent {
	return CandidateEvent{
		Address:   e.Address,
		Source:    "daily",
		Timestamp: now.UTC(),
		Tags:      []string{fmt.Sprintf("period:%d", periodDays), "leaderboard"},
		Nickname:  e.Remark,
		ScoreHint: e.Score,
		Meta: CandidateMeta{Leaderboard: LeaderboardMeta{
			PeriodDays:     periodDays,
			Rank:           e.Rank,
			Weight:         e.Weight,
			Score:          e.Score,
			WinRate:        e.WinRate,
			ExecutedOrders: e.ExecutedOrders,
			RealizedPnl:    e.RealizedPnl,
			PnlConsistency: e.PnlConsistency,
			Efficiency:     e.Efficiency,
			Labels:         e.Labels,
		}},
	}
}

// NewAuto returns a Redis-backed sink when REDIS_ADDR is set, matching
// the teacher's env-gated cache auto-selection; otherwise a no-op sink
// so the scheduler runs standalone in dev.
func NewAuto(channel string) CandidateSink {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return &redisSink{client: redis.NewClient(&redis.Options{Addr: addr}), channel: channel}
	}
	return &logSink{}
}

type redisSink struct {
	client  *redis.Client
	channel string
}

func (s *redisSink) Publish(ctx context.Context, event CandidateEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Publish(ctx, s.channel, payload).Err()
}

// logSink is the no-op fallback: it logs the event and returns success
// so a cycle without Redis configured still completes its publish
// step.
type logSink struct{}

func (s *logSink) Publish(ctx context.Context, event CandidateEvent) error {
	log.Info().Str("address", event.Address).Int("rank", event.Meta.Leaderboard.Rank).Msg("candidate event (no sink configured)")
	return nil
}
