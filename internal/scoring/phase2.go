package scoring

import (
	"math"

	"github.com/hyperalpha/traderscore/internal/domain"
)

// ApplyStats overwrites each entry's winRate (when the enrichment stat
// is finite), stat* fields, and meta.Stats blob. Score values are left
// untouched — enrichment never mutates the composite score itself.
func ApplyStats(entries []domain.RankedEntry, statsByAddress map[string]*domain.AddressStats) []domain.RankedEntry {
	out := make([]domain.RankedEntry, len(entries))
	copy(out, entries)

	for i := range out {
		stats, ok := statsByAddress[out[i].Address]
		if !ok || stats == nil {
			continue
		}
		if finite(stats.WinRate) {
			out[i].WinRate = clamp(stats.WinRate, 0, 1)
		}
		openPos, closePos := stats.OpenPosCount, stats.ClosePosCount
		avgDur, totalPnl, maxDD := stats.AvgPosDuration, stats.TotalPnl, stats.MaxDrawdown
		out[i].StatOpenPositions = &openPos
		out[i].StatClosedPositions = &closePos
		out[i].StatAvgPosDuration = &avgDur
		out[i].StatTotalPnl = &totalPnl

		enrichedMaxDD := math.Max(out[i].Meta.ApiMaxDrawdown, maxDD)
		out[i].StatMaxDrawdown = &enrichedMaxDD
		out[i].Meta.ApiMaxDrawdown = enrichedMaxDD
		out[i].Meta.Stats = stats
	}
	return out
}

// RefilterAndRenormalize implements phase 2 of §4.3: re-evaluate hard
// filter A using the enriched drawdown, drop newly filtered entries,
// re-rank, and recompute weights on the resulting top-K set. No
// persisted entry can be filtered=true after this runs.
func RefilterAndRenormalize(entries []domain.RankedEntry, params domain.ScoringParams, selectCount int) []domain.RankedEntry {
	survivors := make([]domain.RankedEntry, 0, len(entries))
	for _, e := range entries {
		enrichedDD := e.Meta.ApiMaxDrawdown
		if e.StatMaxDrawdown != nil {
			enrichedDD = *e.StatMaxDrawdown
		}
		if enrichedDD > params.MaxDrawdownLimit {
			continue
		}
		survivors = append(survivors, e)
	}

	sortByScoreDesc(survivors)
	assignRanks(survivors)
	assignWeights(survivors, selectCount)
	return survivors
}
