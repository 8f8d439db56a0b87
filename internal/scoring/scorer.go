// Package scoring implements the pure, deterministic scoring pipeline:
// phase-1 scoring from raw leaderboard entries, and phase-2 re-scoring
// after enrichment. No I/O, no ambient state — every function here is
// a pure transform over its arguments.
package scoring

import (
	"math"
	"sort"

	"github.com/hyperalpha/traderscore/internal/domain"
)

const perfectRecordMinWinRate = 0.999
const perfectRecordMinTrades = 10

// Score implements phase 1 of §4.3: normalize, hard-filter, compute
// ScoringDetails, drop suspicious perfect records, sort, rank, and
// weight. If every entry is filtered out, it falls back to the
// pre-drop list so downstream never sees an empty period (policy
// controlled by params.FallbackOnAllFiltered).
func Score(raw []domain.RawLeaderboardEntry, params domain.ScoringParams, selectCount int) []domain.RankedEntry {
	mapped := make([]domain.RankedEntry, 0, len(raw))
	for _, entry := range raw {
		mapped = append(mapped, scoreOne(entry, params))
	}

	survivors := dropFiltered(mapped)
	survivors = dropSuspiciousPerfectRecords(survivors)

	if len(survivors) == 0 && params.FallbackOnAllFiltered {
		survivors = make([]domain.RankedEntry, len(mapped))
		copy(survivors, mapped)
		for i := range survivors {
			survivors[i].Filtered = false
			survivors[i].FilterReason = domain.FilterNone
		}
	}

	sortByScoreDesc(survivors)
	assignRanks(survivors)
	assignWeights(survivors, selectCount)
	return survivors
}

func scoreOne(entry domain.RawLeaderboardEntry, params domain.ScoringParams) domain.RankedEntry {
	address := domain.NormalizeAddress(entry.Address)
	winRate := clamp(entry.WinRate, 0, 1)
	executedOrders := entry.ExecutedOrders
	if executedOrders < 0 {
		executedOrders = 0
	}
	realizedPnl := entry.RealizedPnl
	if !finite(realizedPnl) {
		realizedPnl = 0
	}

	apiMaxDrawdown := 0.0
	if entry.Stats != nil {
		apiMaxDrawdown = entry.Stats.MaxDrawdown
	}

	base := domain.RankedEntry{
		Address:        address,
		WinRate:        winRate,
		ExecutedOrders: executedOrders,
		RealizedPnl:    realizedPnl,
		Efficiency:     domain.Efficiency(realizedPnl, executedOrders),
		Remark:         entry.Remark,
		Labels:         entry.Labels,
		Meta: domain.ScoringMeta{
			RawEntry:       entry,
			ApiMaxDrawdown: apiMaxDrawdown,
		},
	}

	if apiMaxDrawdown > params.MaxDrawdownLimit {
		return filteredEntry(base, domain.FilterMaxDrawdownExceeded, apiMaxDrawdown)
	}
	if executedOrders > params.MaxTradesHardLimit {
		return filteredEntry(base, domain.FilterScalpingPenalty, apiMaxDrawdown)
	}

	numWins := int(math.Round(float64(executedOrders) * winRate))
	numLosses := executedOrders - numWins
	details := computeDetails(realizedPnl, executedOrders, numWins, numLosses, entry.PnlList, params)

	if details.MaxDrawdown > params.MaxDrawdownLimit {
		filtered := filteredEntry(base, domain.FilterMaxDrawdownExceeded, apiMaxDrawdown)
		filtered.Meta.ApiMaxDrawdown = math.Max(apiMaxDrawdown, details.MaxDrawdown)
		return filtered
	}

	base.PnlConsistency = details.SmoothPnlScore
	base.Score = compositeOf(details)
	base.Meta.Details = details
	statMaxDrawdown := math.Max(apiMaxDrawdown, details.MaxDrawdown)
	base.StatMaxDrawdown = &statMaxDrawdown
	return base
}

func filteredEntry(base domain.RankedEntry, reason domain.FilterReason, apiMaxDrawdown float64) domain.RankedEntry {
	base.Filtered = true
	base.FilterReason = reason
	base.Score = 0
	base.PnlConsistency = 0
	base.StatMaxDrawdown = &apiMaxDrawdown
	base.Meta.Filtered = true
	base.Meta.FilterReason = reason
	return base
}

func dropFiltered(entries []domain.RankedEntry) []domain.RankedEntry {
	out := make([]domain.RankedEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Filtered {
			out = append(out, e)
		}
	}
	return out
}

// dropSuspiciousPerfectRecords drops entries with winRate >= 0.999 and
// executedOrders >= 10; low-sample perfect records are exempt.
func dropSuspiciousPerfectRecords(entries []domain.RankedEntry) []domain.RankedEntry {
	out := make([]domain.RankedEntry, 0, len(entries))
	for _, e := range entries {
		if e.WinRate >= perfectRecordMinWinRate && e.ExecutedOrders >= perfectRecordMinTrades {
			continue
		}
		out = append(out, e)
	}
	return out
}

func sortByScoreDesc(entries []domain.RankedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
}

func assignRanks(entries []domain.RankedEntry) {
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// assignWeights implements the top-K weighting rule: weight_i =
// max(score_i,0) / S over i in the top selectCount entries, where S is
// the sum of positive scores in that set; zero elsewhere.
func assignWeights(entries []domain.RankedEntry, selectCount int) {
	topK := selectCount
	if topK > len(entries) {
		topK = len(entries)
	}

	sum := 0.0
	for i := 0; i < topK; i++ {
		if entries[i].Score > 0 {
			sum += entries[i].Score
		}
	}

	for i := range entries {
		if i < topK && sum > 0 {
			s := entries[i].Score
			if s < 0 {
				s = 0
			}
			entries[i].Weight = s / sum
		} else {
			entries[i].Weight = 0
		}
	}
}
