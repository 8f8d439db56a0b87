package domain

import "strings"

// RawLeaderboardEntry is one row of a paged leaderboard response, before
// any scoring is applied.
type RawLeaderboardEntry struct {
	Address        string       `json:"address"`
	WinRate        float64      `json:"winRate"`
	ExecutedOrders int          `json:"executedOrders"`
	RealizedPnl    float64      `json:"realizedPnl"`
	Remark         string       `json:"remark,omitempty"`
	Labels         []string     `json:"labels,omitempty"`
	PnlList        []PnlSample  `json:"pnlList,omitempty"`
	Stats          *InlineStats `json:"stats,omitempty"`
}

// PnlSample is one (timestamp, value) point from a leaderboard entry's
// embedded pnl history. Value may be absent if the upstream point was
// malformed; callers must check Valid before using it.
type PnlSample struct {
	TimestampMs int64
	Value       float64
	Valid       bool
}

// InlineStats is the optional nested stats object a leaderboard entry may
// carry. Any field may be numerically invalid upstream; zero value means
// "absent", not "zero".
type InlineStats struct {
	MaxDrawdown    float64
	TotalPnl       float64
	OpenPosCount   int
	ClosePosCount  int
	AvgPosDuration float64
	WinRate        float64
}

// NormalizeAddress lowercases and trims a trader address the way every
// ingest boundary (HTTP decode, SQL read, bus publish) must before using
// it as a map or unique-constraint key.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// AddressStats is the enrichment payload returned by the per-address
// stats endpoint. A nil *AddressStats means the endpoint had no data for
// that address; it is not an error.
type AddressStats struct {
	WinRate        float64
	OpenPosCount   int
	ClosePosCount  int
	AvgPosDuration float64
	TotalPnl       float64
	MaxDrawdown    float64
}

// WindowSeries is one named window ("day", "week", "month", ...) of a
// trader's portfolio history, as returned by the portfolio endpoint.
type WindowSeries struct {
	WindowName          string
	PnlHistory          []PnlSample
	AccountValueHistory []PnlSample
}
