package domain

// FilterReason names why an entry was excluded by a hard filter.
type FilterReason string

const (
	FilterNone                  FilterReason = ""
	FilterMaxDrawdownExceeded   FilterReason = "max_drawdown_exceeded"
	FilterScalpingPenalty       FilterReason = "scalping_penalty"
)

// ScoringDetails is the full breakdown of the composite score's inputs,
// always finite: a degenerate input degrades every sub-value to zero
// rather than propagating NaN.
type ScoringDetails struct {
	SmoothPnlScore float64
	MaxDrawdown    float64
	UlcerIndex     float64
	UpFraction     float64
	RawWinRate     float64
	AdjWinRate     float64
	NormalizedPnl  float64
	TradeFreqScore float64

	WeightedSmoothPnl float64
	WeightedWinRate   float64
	WeightedPnl       float64
	WeightedTradeFreq float64
}

// ScoringMeta is the structured replacement for the opaque "meta" blob
// the upstream source persists: the raw entry, the scoring breakdown,
// any enrichment stats applied, and the filter decision, kept together
// for audit rather than scattered across free-form map keys.
type ScoringMeta struct {
	RawEntry        RawLeaderboardEntry
	Details         ScoringDetails
	Stats           *AddressStats
	Filtered        bool
	FilterReason    FilterReason
	ApiMaxDrawdown  float64
}

// RankedEntry is the scorer's output per trader per period.
type RankedEntry struct {
	Address        string
	Rank           int
	Score          float64
	Weight         float64
	Filtered       bool
	FilterReason   FilterReason
	WinRate        float64
	ExecutedOrders int
	RealizedPnl    float64
	Efficiency     float64
	PnlConsistency float64
	Remark         string
	Labels         []string

	StatOpenPositions   *int
	StatClosedPositions *int
	StatAvgPosDuration  *float64
	StatTotalPnl        *float64
	StatMaxDrawdown     *float64

	Meta ScoringMeta
}

// Efficiency implements the retained division-by-zero behavior: when
// ExecutedOrders is 0 the ratio is not taken and realizedPnl is returned
// unchanged, sign included.
func Efficiency(realizedPnl float64, executedOrders int) float64 {
	if executedOrders == 0 {
		return realizedPnl
	}
	return realizedPnl / float64(executedOrders)
}
