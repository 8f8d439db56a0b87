package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/hyperalpha/traderscore/internal/domain"
)

// SortOrder is the leaderboard page sort enum. Value 2 is intentionally
// unused, preserved for wire compatibility with the upstream API.
type SortOrder int

const (
	SortWinRate          SortOrder = 0
	SortAccountValue      SortOrder = 1
	sortUnused2           SortOrder = 2
	SortRealizedPnl       SortOrder = 3
	SortTradesCount       SortOrder = 4
	SortProfitableTrades  SortOrder = 5
	SortLastOperation     SortOrder = 6
	SortAvgHoldingPeriod  SortOrder = 7
	SortCurrentPositions  SortOrder = 8
)

// Config tunes the HTTP behavior of Client. Retry counts differ per
// endpoint class per the spec's retry policy: pagination throughput
// matters more than per-page success, stats/portfolio calls are worth
// retrying harder because each address is only fetched once per cycle.
type Config struct {
	BaseURL         string
	InfoURL         string
	RequestTimeout  time.Duration
	LeaderboardRetries int
	StatsRetries       int
	PortfolioRetries   int
	BackoffBase        time.Duration
	UserAgent          string
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout:     7 * time.Second,
		LeaderboardRetries: 0,
		StatsRetries:       2,
		PortfolioRetries:   1,
		BackoffBase:        200 * time.Millisecond,
		UserAgent:          "traderscore/1.0",
	}
}

// Client is the typed fetcher for the three upstream endpoints. One
// instance is shared process-wide; its *http.Client and breakers are
// safe for concurrent use from the ConcurrencyGate's workers.
type Client struct {
	cfg        Config
	httpClient *http.Client

	pageBreaker      *gobreaker.CircuitBreaker
	statsBreaker     *gobreaker.CircuitBreaker
	portfolioBreaker *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		pageBreaker:      newBreaker("leaderboard-page"),
		statsBreaker:     newBreaker("address-stats"),
		portfolioBreaker: newBreaker("portfolio-series"),
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 5 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
	}
	return gobreaker.NewCircuitBreaker(st)
}

// FetchPage returns up to pageSize entries and whether another page may
// follow. Pagination breaks on a short page (fewer than pageSize rows).
func (c *Client) FetchPage(ctx context.Context, periodDays, pageNum, pageSize int, sort SortOrder) ([]domain.RawLeaderboardEntry, bool, error) {
	url := fmt.Sprintf("%s?pageNum=%d&pageSize=%d&period=%d&sort=%d", c.cfg.BaseURL, pageNum, pageSize, periodDays, sort)

	var envelope struct {
		Data []wirePageEntry `json:"data"`
	}
	_, err := c.call(ctx, "leaderboard-page", c.pageBreaker, c.cfg.LeaderboardRetries, func(ctx context.Context) error {
		body, status, ferr := c.doGet(ctx, url)
		if ferr != nil {
			return ferr
		}
		if status >= 400 {
			return httpErr("leaderboard-page", status, fmt.Errorf("unexpected status"))
		}
		if jerr := json.Unmarshal(body, &envelope); jerr != nil {
			return decodeErr("leaderboard-page", jerr)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	entries := make([]domain.RawLeaderboardEntry, 0, len(envelope.Data))
	for _, w := range envelope.Data {
		entries = append(entries, w.toDomain())
	}
	hasMore := len(entries) >= pageSize
	return entries, hasMore, nil
}

// FetchAddressStat returns nil when upstream has no data for address;
// it is not treated as an error.
func (c *Client) FetchAddressStat(ctx context.Context, address string, periodDays int) (*domain.AddressStats, error) {
	url := fmt.Sprintf("%s/query-addr-stat/%s?period=%d", c.cfg.BaseURL, address, periodDays)

	var envelope struct {
		Data *wireAddressStat `json:"data"`
	}
	_, err := c.call(ctx, "address-stats", c.statsBreaker, c.cfg.StatsRetries, func(ctx context.Context) error {
		body, status, ferr := c.doGet(ctx, url)
		if ferr != nil {
			return ferr
		}
		if status >= 400 {
			return httpErr("address-stats", status, fmt.Errorf("unexpected status"))
		}
		if jerr := json.Unmarshal(body, &envelope); jerr != nil {
			return decodeErr("address-stats", jerr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if envelope.Data == nil {
		return nil, nil
	}
	return envelope.Data.toDomain(), nil
}

// FetchPortfolioSeries expects a top-level list of (windowName, object)
// tuples. Malformed points are dropped; valid neighbors are kept.
func (c *Client) FetchPortfolioSeries(ctx context.Context, address string) ([]domain.WindowSeries, error) {
	reqBody, _ := json.Marshal(map[string]string{"type": "portfolio", "user": address})

	var raw []json.RawMessage
	_, err := c.call(ctx, "portfolio-series", c.portfolioBreaker, c.cfg.PortfolioRetries, func(ctx context.Context) error {
		body, status, ferr := c.doPost(ctx, c.cfg.InfoURL, reqBody)
		if ferr != nil {
			return ferr
		}
		if status >= 400 {
			return httpErr("portfolio-series", status, fmt.Errorf("unexpected status"))
		}
		if jerr := json.Unmarshal(body, &raw); jerr != nil {
			return decodeErr("portfolio-series", jerr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	series := make([]domain.WindowSeries, 0, len(raw))
	for _, tupleRaw := range raw {
		var tuple []json.RawMessage
		if jerr := json.Unmarshal(tupleRaw, &tuple); jerr != nil || len(tuple) != 2 {
			continue
		}
		var windowName string
		if jerr := json.Unmarshal(tuple[0], &windowName); jerr != nil {
			continue
		}
		var wire wireWindowSeries
		if jerr := json.Unmarshal(tuple[1], &wire); jerr != nil {
			continue
		}
		series = append(series, domain.WindowSeries{
			WindowName:          windowName,
			PnlHistory:          parsePointList(wire.PnlHistory),
			AccountValueHistory: parsePointList(wire.AccountValueHistory),
		})
	}
	return series, nil
}

// call applies the retry/backoff/timeout/circuit-breaker policy shared
// by all three endpoints, logging each retry with structured context.
func (c *Client) call(ctx context.Context, endpoint string, breaker *gobreaker.CircuitBreaker, maxRetries int, attempt func(context.Context) error) (any, error) {
	var lastErr error
	for try := 0; try <= maxRetries; try++ {
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		_, err := breaker.Execute(func() (any, error) {
			return nil, attempt(reqCtx)
		})
		cancel()
		if err == nil {
			return nil, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = networkErr(endpoint, err)
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, timeoutErr(endpoint, ctx.Err())
		}
		if try < maxRetries {
			log.Warn().Str("endpoint", endpoint).Int("attempt", try+1).Err(err).Msg("upstream call failed, retrying")
			select {
			case <-time.After(c.cfg.BackoffBase * time.Duration(try+1)):
			case <-ctx.Done():
				return nil, timeoutErr(endpoint, ctx.Err())
			}
		}
	}
	log.Warn().Str("endpoint", endpoint).Err(lastErr).Msg("upstream call exhausted retries")
	return nil, lastErr
}

func (c *Client) doGet(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, networkErr(url, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	return c.do(req)
}

func (c *Client) doPost(ctx context.Context, url string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, networkErr(url, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, 0, timeoutErr(req.URL.String(), err)
		}
		return nil, 0, networkErr(req.URL.String(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, networkErr(req.URL.String(), err)
	}
	return body, resp.StatusCode, nil
}

func isTimeoutErr(err error) bool {
	return strings.Contains(err.Error(), "deadline exceeded") || strings.Contains(err.Error(), "timeout")
}

func parsePointList(points []json.RawMessage) []domain.PnlSample {
	samples := make([]domain.PnlSample, 0, len(points))
	for _, pointRaw := range points {
		var pair []json.RawMessage
		if err := json.Unmarshal(pointRaw, &pair); err != nil || len(pair) != 2 {
			continue
		}
		var ts int64
		if err := json.Unmarshal(pair[0], &ts); err != nil {
			var tsf float64
			if err2 := json.Unmarshal(pair[0], &tsf); err2 != nil {
				continue
			}
			ts = int64(tsf)
		}
		var raw any
		if err := json.Unmarshal(pair[1], &raw); err != nil {
			samples = append(samples, domain.PnlSample{TimestampMs: ts, Valid: false})
			continue
		}
		v, ok := asFiniteNumber(raw)
		samples = append(samples, domain.PnlSample{TimestampMs: ts, Value: v, Valid: ok})
	}
	return samples
}
