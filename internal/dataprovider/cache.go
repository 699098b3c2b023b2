package dataprovider

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"astock-backtest-lab/internal/domain"
)

// Cache errors
var (
	ErrCacheMiss = errors.New("no cached kline file")
)

var csvHeader = []string{"date", "open", "close", "high", "low", "volume", "amount", "pct_change"}

// Cache stores kline bars as CSV files laid out as
// <root>/<code>/<granularity>.csv.
type Cache struct {
	root string
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{root: dir}
}

func (c *Cache) path(code string, g domain.Granularity) string {
	return filepath.Join(c.root, code, string(g)+".csv")
}

// Load reads the cached bars for one instrument and granularity.
// Returns ErrCacheMiss when no file exists.
func (c *Cache) Load(code string, g domain.Granularity) ([]domain.Bar, error) {
	f, err := os.Open(c.path(code, g))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrCacheMiss
	}

	bars := make([]domain.Bar, 0, len(records)-1)
	for i, rec := range records[1:] { // records[0] is the header
		bar, err := parseCSVRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("cache row %d: %w", i+2, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// Store writes bars to the cache, replacing any previous file.
func (c *Cache) Store(code string, g domain.Granularity, bars []domain.Bar) error {
	dir := filepath.Join(c.root, code)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, string(g)+".csv.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, b := range bars {
		rec := []string{
			b.Date.Format("2006-01-02"),
			formatFloat(b.Open),
			formatFloat(b.Close),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Volume),
			formatFloat(b.Amount),
			formatFloat(b.PctChange),
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(code, g)); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

func parseCSVRecord(rec []string) (domain.Bar, error) {
	if len(rec) != len(csvHeader) {
		return domain.Bar{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(rec))
	}
	date, err := time.Parse("2006-01-02", rec[0])
	if err != nil {
		return domain.Bar{}, fmt.Errorf("bad date %q: %w", rec[0], err)
	}

	vals := make([]float64, 7)
	for i, s := range rec[1:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("bad value %q: %w", s, err)
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

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IsFresh reports whether a series whose newest bar is lastDate still
// satisfies the freshness rule at clock time now: weekends require data
// through that week's Friday; weekdays require the previous trading
// day's bar before the 15:00 close and the current day's bar after it.
func IsFresh(lastDate, now time.Time) bool {
	last := dateOnly(lastDate)
	today := dateOnly(now)

	switch now.Weekday() {
	case time.Saturday:
		return !last.Before(today.AddDate(0, 0, -1))
	case time.Sunday:
		return !last.Before(today.AddDate(0, 0, -2))
	}

	if now.Hour() >= 15 {
		return !last.Before(today)
	}

	required := today.AddDate(0, 0, -1)
	switch required.Weekday() {
	case time.Saturday:
		required = required.AddDate(0, 0, -1)
	case time.Sunday:
		required = required.AddDate(0, 0, -2)
	}
	return !last.Before(required)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// maxDate returns the newest bar date, or the zero time for no bars.
func maxDate(bars []domain.Bar) time.Time {
	var max time.Time
	for _, b := range bars {
		if b.Date.After(max) {
			max = b.Date
		}
	}
	return max
}
