package upstream

import (
	"encoding/json"

	"github.com/hyperalpha/traderscore/internal/domain"
)

// wirePageEntry mirrors the leaderboard page's raw JSON shape before
// coercion. Numeric fields are untyped so both JSON numbers and numeric
// strings are accepted.
type wirePageEntry struct {
	Address        string            `json:"address"`
	WinRate        json.RawMessage   `json:"winRate"`
	ExecutedOrders json.RawMessage   `json:"executedOrders"`
	RealizedPnl    json.RawMessage   `json:"realizedPnl"`
	Remark         string            `json:"remark"`
	Labels         []string          `json:"labels"`
	PnlList        []json.RawMessage `json:"pnlList"`
	Stats          *wireInlineStats  `json:"stats"`
}

type wireInlineStats struct {
	MaxDrawdown    json.RawMessage `json:"maxDrawdown"`
	TotalPnl       json.RawMessage `json:"totalPnl"`
	OpenPosCount   json.RawMessage `json:"openPosCount"`
	ClosePosCount  json.RawMessage `json:"closePosCount"`
	AvgPosDuration json.RawMessage `json:"avgPosDuration"`
	WinRate        json.RawMessage `json:"winRate"`
}

func (w wirePageEntry) toDomain() domain.RawLeaderboardEntry {
	winRate, _ := rawToFinite(w.WinRate)
	executedOrders, _ := rawToFinite(w.ExecutedOrders)
	realizedPnl, _ := rawToFinite(w.RealizedPnl)

	var stats *domain.InlineStats
	if w.Stats != nil {
		maxDD, _ := rawToFinite(w.Stats.MaxDrawdown)
		totalPnl, _ := rawToFinite(w.Stats.TotalPnl)
		openPos, _ := rawToFinite(w.Stats.OpenPosCount)
		closePos, _ := rawToFinite(w.Stats.ClosePosCount)
		avgDur, _ := rawToFinite(w.Stats.AvgPosDuration)
		statWinRate, _ := rawToFinite(w.Stats.WinRate)
		stats = &domain.InlineStats{
			MaxDrawdown:    maxDD,
			TotalPnl:       totalPnl,
			OpenPosCount:   int(openPos),
			ClosePosCount:  int(closePos),
			AvgPosDuration: avgDur,
			WinRate:        statWinRate,
		}
	}

	return domain.RawLeaderboardEntry{
		Address:        domain.NormalizeAddress(w.Address),
		WinRate:        winRate,
		ExecutedOrders: int(executedOrders),
		RealizedPnl:    realizedPnl,
		Remark:         w.Remark,
		Labels:         w.Labels,
		PnlList:        parsePointList(w.PnlList),
		Stats:          stats,
	}
}

type wireAddressStat struct {
	WinRate        json.RawMessage `json:"winRate"`
	OpenPosCount   json.RawMessage `json:"openPosCount"`
	ClosePosCount  json.RawMessage `json:"closePosCount"`
	AvgPosDuration json.RawMessage `json:"avgPosDuration"`
	TotalPnl       json.RawMessage `json:"totalPnl"`
	MaxDrawdown    json.RawMessage `json:"maxDrawdown"`
}

func (w wireAddressStat) toDomain() *domain.AddressStats {
	winRate, _ := rawToFinite(w.WinRate)
	openPos, _ := rawToFinite(w.OpenPosCount)
	closePos, _ := rawToFinite(w.ClosePosCount)
	avgDur, _ := rawToFinite(w.AvgPosDuration)
	totalPnl, _ := rawToFinite(w.TotalPnl)
	maxDD, _ := rawToFinite(w.MaxDrawdown)
	return &domain.AddressStats{
		WinRate:        winRate,
		OpenPosCount:   int(openPos),
		ClosePosCount:  int(closePos),
		AvgPosDuration: avgDur,
		TotalPnl:       totalPnl,
		MaxDrawdown:    maxDD,
	}
}

type wireWindowSeries struct {
	PnlHistory          []json.RawMessage `json:"pnlHistory"`
	AccountValueHistory []json.RawMessage `json:"accountValueHistory"`
}

// rawToFinite coerces a possibly-absent json.RawMessage through
// asFiniteNumber, tolerating both JSON numbers and numeric strings.
func rawToFinite(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return asFiniteNumber(v)
}
