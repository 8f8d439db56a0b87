package domain

import "fmt"

// ScoringParams is process-wide, immutable within a cycle, and loaded once
// at startup by internal/config.
type ScoringParams struct {
	SmoothPnlWeight   float64 `yaml:"smooth_pnl_weight" env:"SCORE_SMOOTH_PNL_WEIGHT"`
	WinRateWeight     float64 `yaml:"win_rate_weight" env:"SCORE_WIN_RATE_WEIGHT"`
	PnlWeight         float64 `yaml:"pnl_weight" env:"SCORE_PNL_WEIGHT"`
	TradeFreqWeight   float64 `yaml:"trade_freq_weight" env:"SCORE_TRADE_FREQ_WEIGHT"`
	OptimalTrades     float64 `yaml:"optimal_trades" env:"SCORE_OPTIMAL_TRADES"`
	TradeSigma        float64 `yaml:"trade_sigma" env:"SCORE_TRADE_SIGMA"`
	PnlReference      float64 `yaml:"pnl_reference" env:"SCORE_PNL_REFERENCE"`
	MaxDrawdownLimit  float64 `yaml:"max_drawdown_limit" env:"SCORE_MAX_DRAWDOWN_LIMIT"`
	ScalpingThreshold float64 `yaml:"scalping_threshold" env:"SCORE_SCALPING_THRESHOLD"`
	MaxTradesHardLimit int    `yaml:"max_trades_hard_limit" env:"SCORE_MAX_TRADES_HARD_LIMIT"`

	// FallbackOnAllFiltered resolves the open question in the design notes:
	// when every candidate fails the hard filters, fall back to the
	// unfiltered list rather than publishing zero events. Default true,
	// matching retained upstream behavior.
	FallbackOnAllFiltered bool `yaml:"fallback_on_all_filtered" env:"SCORE_FALLBACK_ON_ALL_FILTERED"`
}

// DefaultScoringParams returns the defaults named in the configuration
// surface.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		SmoothPnlWeight:        0.45,
		WinRateWeight:          0.30,
		PnlWeight:              0.15,
		TradeFreqWeight:        0.10,
		OptimalTrades:          100,
		TradeSigma:             150,
		PnlReference:           100_000,
		MaxDrawdownLimit:       0.80,
		ScalpingThreshold:      100,
		MaxTradesHardLimit:     200,
		FallbackOnAllFiltered:  true,
	}
}

// Validate rejects a configuration that would make the scorer's weight
// normalization or drawdown math meaningless.
func (p ScoringParams) Validate() error {
	sum := p.SmoothPnlWeight + p.WinRateWeight + p.PnlWeight + p.TradeFreqWeight
	if sum <= 0 {
		return fmt.Errorf("scoring params: component weights must sum to a positive value, got %f", sum)
	}
	if p.TradeSigma <= 0 {
		return fmt.Errorf("scoring params: trade_sigma must be positive, got %f", p.TradeSigma)
	}
	if p.PnlReference <= 1 {
		return fmt.Errorf("scoring params: pnl_reference must be > 1, got %f", p.PnlReference)
	}
	if p.MaxDrawdownLimit <= 0 || p.MaxDrawdownLimit > 1 {
		return fmt.Errorf("scoring params: max_drawdown_limit must be in (0,1], got %f", p.MaxDrawdownLimit)
	}
	if p.MaxTradesHardLimit <= 0 {
		return fmt.Errorf("scoring params: max_trades_hard_limit must be positive, got %d", p.MaxTradesHardLimit)
	}
	return nil
}
