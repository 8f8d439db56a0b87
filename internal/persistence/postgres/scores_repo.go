package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hyperalpha/traderscore/internal/domain"
	"github.com/hyperalpha/traderscore/internal/persistence"
)

const (
	rankedChunkSize = 100
	pointsChunkSize = 400
)

// windowToPeriodDays maps a portfolio series window name to the
// period_days bucket it belongs to, per §4.4 step 4.
var windowToPeriodDays = map[string]int{
	"day":   1,
	"week":  7,
	"month": 30,
}

// scoresRepo implements persistence.Persister for PostgreSQL.
type scoresRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScoresRepo creates a new PostgreSQL-backed Persister.
func NewScoresRepo(db *sqlx.DB, timeout time.Duration) persistence.Persister {
	return &scoresRepo{db: db, timeout: timeout}
}

// ReplacePeriod implements §4.4: one transaction, delete then insert,
// commit or rollback. Chosen over upsert-plus-delete (the source's
// redundant pairing) because the delete-first discipline already
// re-establishes the unique key every cycle.
func (r *scoresRepo) ReplacePeriod(ctx context.Context, periodDays int, ranked []domain.RankedEntry, portfolioByAddr map[string][]domain.WindowSeries) error {
	timeout := r.timeout * time.Duration(len(ranked)/50+1)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return &persistence.Error{Op: "replace_period:begin", Cause: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ranked_entries WHERE period_days = $1`, periodDays); err != nil {
		return &persistence.Error{Op: "replace_period:delete_ranked", Cause: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pnl_points WHERE period_days = $1`, periodDays); err != nil {
		return &persistence.Error{Op: "replace_period:delete_points", Cause: err}
	}

	if err := insertRankedChunked(ctx, tx, periodDays, ranked); err != nil {
		return &persistence.Error{Op: "replace_period:insert_ranked", Cause: err}
	}

	points := synthesizePnlPoints(periodDays, ranked, portfolioByAddr)
	if err := insertPointsChunked(ctx, tx, points); err != nil {
		return &persistence.Error{Op: "replace_period:insert_points", Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return &persistence.Error{Op: "replace_period:commit", Cause: err}
	}
	return nil
}

func insertRankedChunked(ctx context.Context, tx *sqlx.Tx, periodDays int, ranked []domain.RankedEntry) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ranked_entries
		(period_days, address, rank, score, weight, win_rate, executed_orders,
		 realized_pnl, pnl_consistency, efficiency, remark, labels, metrics,
		 stat_open_positions, stat_closed_positions, stat_avg_pos_duration,
		 stat_total_pnl, stat_max_drawdown, fetched_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now())`)
	if err != nil {
		return fmt.Errorf("prepare ranked insert: %w", err)
	}
	defer stmt.Close()

	for start := 0; start < len(ranked); start += rankedChunkSize {
		end := start + rankedChunkSize
		if end > len(ranked) {
			end = len(ranked)
		}
		for _, e := range ranked[start:end] {
			metricsJSON, err := json.Marshal(metaForPersist(e))
			if err != nil {
				return fmt.Errorf("marshal metrics for %s: %w", e.Address, err)
			}
			if _, err := stmt.ExecContext(ctx,
				periodDays, e.Address, e.Rank, e.Score, e.Weight,
				e.WinRate, e.ExecutedOrders, e.RealizedPnl, e.PnlConsistency,
				e.Efficiency, e.Remark, pq.Array(e.Labels), metricsJSON,
				e.StatOpenPositions, e.StatClosedPositions, e.StatAvgPosDuration,
				e.StatTotalPnl, e.StatMaxDrawdown,
			); err != nil {
				return fmt.Errorf("insert ranked entry %s: %w", e.Address, err)
			}
		}
	}
	return nil
}

// metaForPersist reduces ScoringMeta to a JSON-safe audit blob,
// dropping the raw entry's PnlList to keep the column bounded.
func metaForPersist(e domain.RankedEntry) map[string]any {
	rawEntry := e.Meta.RawEntry
	rawEntry.PnlList = nil
	return map[string]any{
		"raw_entry":        rawEntry,
		"stats":            e.Meta.Stats,
		"details":          e.Meta.Details,
		"filtered":         e.Meta.Filtered,
		"filter_reason":    e.Meta.FilterReason,
		"api_max_drawdown": e.Meta.ApiMaxDrawdown,
	}
}

func insertPointsChunked(ctx context.Context, tx *sqlx.Tx, points []domain.PnlPoint) error {
	if len(points) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pnl_points
		(period_days, address, source, window_name, point_ts, pnl_value, equity_value)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`)
	if err != nil {
		return fmt.Errorf("prepare points insert: %w", err)
	}
	defer stmt.Close()

	for start := 0; start < len(points); start += pointsChunkSize {
		end := start + pointsChunkSize
		if end > len(points) {
			end = len(points)
		}
		for _, p := range points[start:end] {
			if _, err := stmt.ExecContext(ctx,
				p.PeriodDays, p.Address, string(p.Source), p.WindowName,
				p.PointTS, p.PnlValue, p.EquityValue,
			); err != nil {
				return fmt.Errorf("insert pnl point %s/%s: %w", p.Address, p.WindowName, err)
			}
		}
	}
	return nil
}

// synthesizePnlPoints builds the PnlPoint set from the ranked entries'
// embedded pnl lists (source=hyperbot) and the enrichment portfolio
// series (source=hyperliquid), per §4.4 step 4.
func synthesizePnlPoints(periodDays int, ranked []domain.RankedEntry, portfolioByAddr map[string][]domain.WindowSeries) []domain.PnlPoint {
	var points []domain.PnlPoint
	windowName := fmt.Sprintf("period_%d", periodDays)

	for _, e := range ranked {
		for _, sample := range e.Meta.RawEntry.PnlList {
			if !sample.Valid {
				continue
			}
			v := sample.Value
			points = append(points, domain.PnlPoint{
				PeriodDays: periodDays,
				Address:    e.Address,
				Source:     domain.SourceHyperbot,
				WindowName: windowName,
				PointTS:    time.UnixMilli(sample.TimestampMs).UTC(),
				PnlValue:   &v,
			})
		}

		for _, series := range portfolioByAddr[e.Address] {
			if windowToPeriodDays[series.WindowName] != periodDays {
				continue
			}
			points = append(points, seriesPoints(periodDays, e.Address, series)...)
		}
	}
	return points
}

func seriesPoints(periodDays int, address string, series domain.WindowSeries) []domain.PnlPoint {
	byTS := make(map[int64]*domain.PnlPoint)
	order := make([]int64, 0, len(series.PnlHistory))

	for _, s := range series.PnlHistory {
		if !s.Valid {
			continue
		}
		if _, ok := byTS[s.TimestampMs]; !ok {
			order = append(order, s.TimestampMs)
			byTS[s.TimestampMs] = &domain.PnlPoint{
				PeriodDays: periodDays,
				Address:    address,
				Source:     domain.SourceHyperliquid,
				WindowName: series.WindowName,
				PointTS:    time.UnixMilli(s.TimestampMs).UTC(),
			}
		}
		v := s.Value
		byTS[s.TimestampMs].PnlValue = &v
	}
	for _, s := range series.AccountValueHistory {
		if !s.Valid {
			continue
		}
		if _, ok := byTS[s.TimestampMs]; !ok {
			order = append(order, s.TimestampMs)
			byTS[s.TimestampMs] = &domain.PnlPoint{
				PeriodDays: periodDays,
				Address:    address,
				Source:     domain.SourceHyperliquid,
				WindowName: series.WindowName,
				PointTS:    time.UnixMilli(s.TimestampMs).UTC(),
			}
		}
		v := s.Value
		byTS[s.TimestampMs].EquityValue = &v
	}

	out := make([]domain.PnlPoint, 0, len(order))
	for _, ts := range order {
		out = append(out, *byTS[ts])
	}
	return out
}

// ReadRanked returns entries ordered by rank ascending.
func (r *scoresRepo) ReadRanked(ctx context.Context, periodDays, limit int) ([]domain.RankedEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, rankedSelectColumns+`
		FROM ranked_entries WHERE period_days = $1 ORDER BY rank ASC LIMIT $2`, periodDays, limit)
	if err != nil {
		return nil, fmt.Errorf("query ranked: %w", err)
	}
	defer rows.Close()
	return scanRanked(rows)
}

// ReadSelected returns entries ordered by weight descending then rank
// ascending.
func (r *scoresRepo) ReadSelected(ctx context.Context, periodDays, limit int) ([]domain.RankedEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, rankedSelectColumns+`
		FROM ranked_entries WHERE period_days = $1 ORDER BY weight DESC, rank ASC LIMIT $2`, periodDays, limit)
	if err != nil {
		return nil, fmt.Errorf("query selected: %w", err)
	}
	defer rows.Close()
	return scanRanked(rows)
}

const rankedSelectColumns = `
	SELECT address, rank, score, weight, win_rate, executed_orders, realized_pnl,
	       pnl_consistency, efficiency, remark, labels, metrics,
	       stat_open_positions, stat_closed_positions, stat_avg_pos_duration,
	       stat_total_pnl, stat_max_drawdown
`

func scanRanked(rows *sqlx.Rows) ([]domain.RankedEntry, error) {
	var out []domain.RankedEntry
	for rows.Next() {
		var e domain.RankedEntry
		var labels pq.StringArray
		var metricsJSON []byte

		if err := rows.Scan(
			&e.Address, &e.Rank, &e.Score, &e.Weight, &e.WinRate, &e.ExecutedOrders,
			&e.RealizedPnl, &e.PnlConsistency, &e.Efficiency, &e.Remark, &labels, &metricsJSON,
			&e.StatOpenPositions, &e.StatClosedPositions, &e.StatAvgPosDuration,
			&e.StatTotalPnl, &e.StatMaxDrawdown,
		); err != nil {
			return nil, fmt.Errorf("scan ranked entry: %w", err)
		}
		e.Labels = labels
		if len(metricsJSON) > 0 {
			_ = json.Unmarshal(metricsJSON, &e.Meta)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranked rows: %w", err)
	}
	return out, nil
}
