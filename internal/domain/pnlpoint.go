package domain

import "time"

// PnlSource names which upstream contributed a PnlPoint.
type PnlSource string

const (
	SourceHyperbot    PnlSource = "hyperbot"
	SourceHyperliquid PnlSource = "hyperliquid"
)

// PnlPoint is one persisted time-series sample, keyed by
// (period, address, source, window_name, timestamp).
type PnlPoint struct {
	PeriodDays  int
	Address     string
	Source      PnlSource
	WindowName  string
	PointTS     time.Time
	PnlValue    *float64
	EquityValue *float64
}
