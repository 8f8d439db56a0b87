package scoring

import (
	"math"

	"github.com/hyperalpha/traderscore/internal/domain"
)

// smoothPnlResult is the intermediate output of the path-shape analysis
// over a trader's pnl series.
type smoothPnlResult struct {
	Score       float64
	MaxDrawdown float64
	UlcerIndex  float64
	UpFraction  float64
}

// computeSmoothPnl implements the sequence analysis in §4.3.1: running
// peak, drawdown, ulcer index, up-fraction, and the composite
// path-shape score. Requires at least 2 valid points; otherwise every
// value is zero.
func computeSmoothPnl(pnlList []domain.PnlSample) smoothPnlResult {
	values := make([]float64, 0, len(pnlList))
	for _, p := range pnlList {
		if p.Valid {
			values = append(values, p.Value)
		}
	}
	if len(values) < 2 {
		return smoothPnlResult{}
	}

	n := len(values)
	x := make([]float64, n)
	base := values[0]
	for i, v := range values {
		x[i] = v - base
	}

	peak := x[0]
	sumSqDrawdown := 0.0
	maxDrawdown := 0.0
	for i := 0; i < n; i++ {
		if x[i] > peak {
			peak = x[i]
		}
		dd := 0.0
		if peak > 0 {
			dd = math.Max(0, (peak-x[i])/peak)
		}
		sumSqDrawdown += dd * dd
		if dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	ulcerIndex := math.Sqrt(sumSqDrawdown / float64(n))

	upCount := 0
	for i := 1; i < n; i++ {
		if x[i] > x[i-1] {
			upCount++
		}
	}
	upFraction := float64(upCount) / float64(n-1)

	last := x[n-1]
	maxAbs := 0.0
	for _, v := range x {
		if math.Abs(v) > maxAbs {
			maxAbs = math.Abs(v)
		}
	}
	r := 0.0
	if last > 0 && maxAbs > 0 {
		r = last / maxAbs
	}

	score := math.Max(0, r) * upFraction / (1 + maxDrawdown + ulcerIndex)
	if !finite(score) {
		return smoothPnlResult{}
	}
	return smoothPnlResult{
		Score:       score,
		MaxDrawdown: maxDrawdown,
		UlcerIndex:  ulcerIndex,
		UpFraction:  upFraction,
	}
}

// adjustedWinRate implements the Laplace-smoothed win rate with the two
// penalty adjustments for unrealistically clean records.
func adjustedWinRate(numWins, numLosses int) float64 {
	base := float64(numWins+1) / float64(numWins+numLosses+2)
	switch {
	case numLosses == 0 && numWins > 0:
		return base * 0.7
	case base > 0.95 && numWins+numLosses > 20:
		return base * 0.8
	default:
		return base
	}
}

// normalizedPnl log-normalizes realizedPnl against params.PnlReference,
// clamped to [0,1]; non-positive pnl scores zero.
func normalizedPnl(realizedPnl float64, pnlReference float64) float64 {
	if realizedPnl <= 0 {
		return 0
	}
	v := math.Log10(realizedPnl+1) / math.Log10(pnlReference)
	return clamp(v, 0, 1)
}

// tradeFreqScore is the bell-curve-around-optimalTrades score with a
// progressive penalty past scalpingThreshold.
func tradeFreqScore(numTrades int, params domain.ScoringParams) float64 {
	if numTrades <= 0 {
		return 0
	}
	n := float64(numTrades)
	base := math.Exp(-math.Pow(n-params.OptimalTrades, 2) / (2 * params.TradeSigma * params.TradeSigma))

	if n <= params.ScalpingThreshold {
		return base
	}
	excess := n - params.ScalpingThreshold
	switch {
	case excess <= 50:
		return base * 0.7
	case excess <= 100:
		return base * 0.4
	case excess <= 200:
		return base * 0.2
	default:
		return base * 0.05
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// computeDetails assembles the full ScoringDetails breakdown for one
// entry, given its realized pnl, trade counts, pnl path, and the
// process-wide scoring params.
func computeDetails(realizedPnl float64, numTrades, numWins, numLosses int, pnlList []domain.PnlSample, params domain.ScoringParams) domain.ScoringDetails {
	smooth := computeSmoothPnl(pnlList)
	adjWR := adjustedWinRate(numWins, numLosses)
	npnl := normalizedPnl(realizedPnl, params.PnlReference)
	tfs := tradeFreqScore(numTrades, params)

	d := domain.ScoringDetails{
		SmoothPnlScore: smooth.Score,
		MaxDrawdown:    smooth.MaxDrawdown,
		UlcerIndex:     smooth.UlcerIndex,
		UpFraction:     smooth.UpFraction,
		RawWinRate:     safeWinRate(numWins, numLosses),
		AdjWinRate:     adjWR,
		NormalizedPnl:  npnl,
		TradeFreqScore: tfs,
	}
	d.WeightedSmoothPnl = params.SmoothPnlWeight * d.SmoothPnlScore
	d.WeightedWinRate = params.WinRateWeight * d.AdjWinRate
	d.WeightedPnl = params.PnlWeight * d.NormalizedPnl
	d.WeightedTradeFreq = params.TradeFreqWeight * d.TradeFreqScore
	return d
}

func safeWinRate(numWins, numLosses int) float64 {
	total := numWins + numLosses
	if total == 0 {
		return 0
	}
	return float64(numWins) / float64(total)
}

// compositeOf sums the four weighted components, collapsing to 0 if
// the result is non-finite.
func compositeOf(d domain.ScoringDetails) float64 {
	score := d.WeightedSmoothPnl + d.WeightedWinRate + d.WeightedPnl + d.WeightedTradeFreq
	if !finite(score) {
		return 0
	}
	return score
}
