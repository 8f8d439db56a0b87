package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperalpha/traderscore/internal/domain"
)

func sample(ts int64, v float64) domain.PnlSample {
	return domain.PnlSample{TimestampMs: ts, Value: v, Valid: true}
}

func TestScoreIdealTrader(t *testing.T) {
	params := domain.DefaultScoringParams()
	entries := []domain.RawLeaderboardEntry{
		{
			Address:        "0xIDEAL",
			WinRate:        0.70,
			ExecutedOrders: 80,
			RealizedPnl:    50000,
			Stats:          &domain.InlineStats{MaxDrawdown: 0.05},
			PnlList: []domain.PnlSample{
				sample(1, 0), sample(2, 10000), sample(3, 20000),
				sample(4, 30000), sample(5, 40000), sample(6, 50000),
			},
		},
	}

	ranked := Score(entries, params, 12)
	require.Len(t, ranked, 1)
	e := ranked[0]
	assert.False(t, e.Filtered)
	assert.InDelta(t, 1.0, e.Meta.Details.UpFraction, 1e-9)
	assert.InDelta(t, 0.0, e.Meta.Details.MaxDrawdown, 1e-9)
	assert.InDelta(t, 0.0, e.Meta.Details.UlcerIndex, 1e-9)
	assert.InDelta(t, 1.0, e.Meta.Details.SmoothPnlScore, 1e-9)
	assert.InDelta(t, 0.898, e.Score, 0.01)
}

func TestScorePerfectRecordSuspiciousIsDropped(t *testing.T) {
	params := domain.DefaultScoringParams()
	entries := []domain.RawLeaderboardEntry{
		{Address: "0xA", WinRate: 1.0, ExecutedOrders: 50, RealizedPnl: 1000},
		{Address: "0xB", WinRate: 0.6, ExecutedOrders: 40, RealizedPnl: 1000},
	}
	ranked := Score(entries, params, 12)
	for _, e := range ranked {
		assert.NotEqual(t, "0xa", e.Address)
	}
}

func TestScorePerfectRecordLowSampleIsRetained(t *testing.T) {
	params := domain.DefaultScoringParams()
	entries := []domain.RawLeaderboardEntry{
		{Address: "0xC", WinRate: 1.0, ExecutedOrders: 5, RealizedPnl: 1000},
	}
	ranked := Score(entries, params, 12)
	require.Len(t, ranked, 1)
	assert.False(t, ranked[0].Filtered)
}

func TestScoreDeepDrawdownIsFiltered(t *testing.T) {
	params := domain.DefaultScoringParams()
	// A lone filtered entry would otherwise come back via the
	// all-filtered fallback (see TestScoreAllFilteredFallback).
	params.FallbackOnAllFiltered = false
	entries := []domain.RawLeaderboardEntry{
		{
			Address:        "0xDD",
			WinRate:        0.6,
			ExecutedOrders: 40,
			RealizedPnl:    1000,
			PnlList: []domain.PnlSample{
				sample(1, 0), sample(2, 100000), sample(3, 10000),
			},
		},
	}
	ranked := Score(entries, params, 12)
	assert.Empty(t, ranked)
}

func TestScoreScalperIsFiltered(t *testing.T) {
	params := domain.DefaultScoringParams()
	entries := []domain.RawLeaderboardEntry{
		{Address: "0xSCALP", WinRate: 0.8, ExecutedOrders: 400, RealizedPnl: 50000},
		{Address: "0xMOD", WinRate: 0.8, ExecutedOrders: 100, RealizedPnl: 50000},
	}
	ranked := Score(entries, params, 12)
	require.Len(t, ranked, 1)
	assert.Equal(t, "0xmod", ranked[0].Address)
}

func TestScoreAllFilteredFallback(t *testing.T) {
	params := domain.DefaultScoringParams()
	entries := []domain.RawLeaderboardEntry{
		{Address: "0xA", WinRate: 1.0, ExecutedOrders: 50, RealizedPnl: 1000},
		{Address: "0xB", WinRate: 1.0, ExecutedOrders: 50, RealizedPnl: 2000},
	}
	ranked := Score(entries, params, 12)
	require.Len(t, ranked, 2)
	sum := 0.0
	for _, e := range ranked {
		sum += e.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestAssignWeightsNormalization(t *testing.T) {
	entries := []domain.RankedEntry{
		{Address: "a", Score: 0.8},
		{Address: "b", Score: 0.4},
		{Address: "c", Score: 0.2},
	}
	assignRanks(entries)
	assignWeights(entries, 2)
	assert.InDelta(t, 0.8/1.2, entries[0].Weight, 1e-9)
	assert.InDelta(t, 0.4/1.2, entries[1].Weight, 1e-9)
	assert.Equal(t, 0.0, entries[2].Weight)
}

func TestBoundaryBehaviors(t *testing.T) {
	params := domain.DefaultScoringParams()

	t.Run("short pnl list scores zero path shape", func(t *testing.T) {
		d := computeDetails(1000, 10, 5, 5, []domain.PnlSample{sample(1, 100)}, params)
		assert.Equal(t, 0.0, d.SmoothPnlScore)
		assert.Equal(t, 0.0, d.MaxDrawdown)
	})

	t.Run("no trades gives laplace 0.5 adjusted but 0 raw", func(t *testing.T) {
		d := computeDetails(0, 0, 0, 0, nil, params)
		assert.InDelta(t, 0.5, d.AdjWinRate, 1e-9)
		assert.Equal(t, 0.0, d.RawWinRate)
	})

	t.Run("non-positive realized pnl normalizes to zero", func(t *testing.T) {
		assert.Equal(t, 0.0, normalizedPnl(0, params.PnlReference))
		assert.Equal(t, 0.0, normalizedPnl(-500, params.PnlReference))
	})

	t.Run("zero trades gives zero trade freq score", func(t *testing.T) {
		assert.Equal(t, 0.0, tradeFreqScore(0, params))
	})
}

func TestRefilterNeverIncreasesSet(t *testing.T) {
	params := domain.DefaultScoringParams()
	dd := 0.5
	entries := []domain.RankedEntry{
		{Address: "a", Score: 0.8, StatMaxDrawdown: &dd},
	}
	ddHigh := 0.95
	entries = append(entries, domain.RankedEntry{Address: "b", Score: 0.5, StatMaxDrawdown: &ddHigh})

	out := RefilterAndRenormalize(entries, params, 12)
	assert.Len(t, out, 1)
	require.NoError(t, ValidateRanked(out, 12))
}
