package dataprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"astock-backtest-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultEndpoint   = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
)

// EastMoneySource fetches forward-adjusted kline data from the East
// Money history endpoint.
type EastMoneySource struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// SourceOption configures EastMoneySource.
type SourceOption func(*EastMoneySource)

// WithEndpoint overrides the kline endpoint URL.
func WithEndpoint(endpoint string) SourceOption {
	return func(s *EastMoneySource) {
		s.endpoint = endpoint
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) SourceOption {
	return func(s *EastMoneySource) {
		s.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) SourceOption {
	return func(s *EastMoneySource) {
		s.maxRetries = n
	}
}

// WithRetryDelay sets the delay between retries.
func WithRetryDelay(d time.Duration) SourceOption {
	return func(s *EastMoneySource) {
		s.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) SourceOption {
	return func(s *EastMoneySource) {
		s.client = client
	}
}

// NewEastMoneySource creates an East Money kline source.
func NewEastMoneySource(opts ...SourceOption) *EastMoneySource {
	s := &EastMoneySource{
		endpoint:   DefaultEndpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Source = (*EastMoneySource)(nil)

// klineResponse is the endpoint's JSON envelope.
type klineResponse struct {
	Data *klineData `json:"data"`
}

type klineData struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Klines []string `json:"klines"`
}

// klt codes per granularity.
var kltCodes = map[domain.Granularity]string{
	domain.GranularityDaily:   "101",
	domain.GranularityWeekly:  "102",
	domain.GranularityMonthly: "103",
}

// FetchKline retrieves all available bars for the instrument at one
// granularity, forward-adjusted (fqt=1).
func (s *EastMoneySource) FetchKline(ctx context.Context, code string, g domain.Granularity) ([]domain.Bar, error) {
	klt, ok := kltCodes[g]
	if !ok {
		return nil, fmt.Errorf("unsupported granularity %q", g)
	}

	data, err := s.query(ctx, code, klt, "19900101")
	if err != nil {
		return nil, err
	}
	if len(data.Klines) == 0 {
		return nil, ErrNoData
	}

	bars := make([]domain.Bar, 0, len(data.Klines))
	for _, row := range data.Klines {
		bar, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("parse kline row for %s: %w", code, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// InstrumentName returns the display name reported by the endpoint. A
// failed lookup degrades to the code itself.
func (s *EastMoneySource) InstrumentName(ctx context.Context, code string) (string, error) {
	data, err := s.query(ctx, code, "101", recentStart())
	if err != nil || data.Name == "" {
		return code, nil
	}
	return data.Name, nil
}

// query performs one endpoint call with retries.
func (s *EastMoneySource) query(ctx context.Context, code, klt, beg string) (*klineData, error) {
	params := url.Values{}
	params.Set("secid", secID(code))
	params.Set("fields1", "f1,f2,f3,f4,f5,f6")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61")
	params.Set("klt", klt)
	params.Set("fqt", "1") // forward adjusted
	params.Set("beg", beg)
	params.Set("end", "20500101")
	reqURL := s.endpoint + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		var parsed klineResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}
		if parsed.Data == nil {
			// Unknown instruments come back with a null data field;
			// retrying will not help.
			return nil, ErrNoData
		}
		return parsed.Data, nil
	}
	return nil, lastErr
}

// parseKlineRow decodes one comma-joined kline row:
// date,open,close,high,low,volume,amount,amplitude,pct_change,change,turnover
func parseKlineRow(row string) (domain.Bar, error) {
	fields := strings.Split(row, ",")
	if len(fields) < 9 {
		return domain.Bar{}, fmt.Errorf("short row %q", row)
	}

	date, err := time.Parse("2006-01-02", fields[0])
	if err != nil {
		return domain.Bar{}, fmt.Errorf("bad date %q: %w", fields[0], err)
	}

	vals := make([]float64, 7)
	for i, idx := range []int{1, 2, 3, 4, 5, 6, 8} {
		v, err := strconv.ParseFloat(fields[idx], 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("bad field %q in row %q: %w", fields[idx], row, err)
		}
		vals[i] = v
	}

	return domain.Bar{
		Date:      date,
		Open:      vals[0],
		Close:     vals[1],
		High:      vals[2],
		Low:       vals[3],
		Volume:    vals[4],
		Amount:    vals[5],
		PctChange: vals[6],
	}, nil
}

// secID maps an A-share code to the endpoint's market-qualified id:
// Shanghai codes (6xxxxx) are market 1, everything else market 0.
func secID(code string) string {
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}

// recentStart is a begin date close enough to now for a one-row name
// lookup without pulling full history.
func recentStart() string {
	return time.Now().AddDate(0, 0, -14).Format("20060102")
}
