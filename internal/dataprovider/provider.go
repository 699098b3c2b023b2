package dataprovider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/observability"
	"astock-backtest-lab/internal/series"
	"astock-backtest-lab/internal/storage"
)

// Loader is the read side consumed by replay and simulation: it yields a
// fully prepared snapshot for one instrument.
type Loader interface {
	LoadSnapshot(ctx context.Context, code string) (*domain.Snapshot, error)
}

// Provider loads instrument snapshots, consulting the CSV cache before
// the remote source and resampling daily bars when a coarser granularity
// cannot be fetched.
type Provider struct {
	source      Source
	cache       *Cache
	saveOffline bool
	offline     bool
	barSink     storage.BarStore
	periods     []int
	logger      *log.Logger
	now         func() time.Time
}

var _ Loader = (*Provider)(nil)

// ProviderOptions configures a Provider. Zero values select defaults.
type ProviderOptions struct {
	Source      Source
	Cache       *Cache
	SaveOffline bool

	// Offline serves cached bars regardless of freshness; the source
	// is only consulted for instruments with no cache at all.
	Offline bool

	// BarSink, when set, receives every batch fetched from the remote
	// source. Insert failures are logged, never propagated.
	BarSink storage.BarStore

	MAPeriods []int
	Logger    *log.Logger
	Now       func() time.Time
}

// NewProvider assembles a Provider from options, falling back to an
// East-Money source, a ./data cache and the default MA periods.
func NewProvider(opts ProviderOptions) *Provider {
	source := opts.Source
	if source == nil {
		source = NewEastMoneySource()
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewCache("data")
	}
	periods := opts.MAPeriods
	if len(periods) == 0 {
		periods = series.DefaultMAPeriods
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{
		source:      source,
		cache:       cache,
		saveOffline: opts.SaveOffline,
		offline:     opts.Offline,
		barSink:     opts.BarSink,
		periods:     periods,
		logger:      logger,
		now:         now,
	}
}

// LoadSnapshot assembles the three-granularity snapshot for one
// instrument. Daily bars are mandatory; weekly and monthly fall back to
// resampling the daily series when their own fetch fails.
func (p *Provider) LoadSnapshot(ctx context.Context, code string) (*domain.Snapshot, error) {
	name, err := p.source.InstrumentName(ctx, code)
	if err != nil || name == "" {
		name = code
	}

	dailyBars, err := p.loadBars(ctx, code, domain.GranularityDaily)
	if err != nil {
		return nil, fmt.Errorf("load daily bars for %s: %w", code, err)
	}

	snap := &domain.Snapshot{
		Code:  code,
		Name:  name,
		Daily: series.Prepare(code, domain.GranularityDaily, dailyBars, p.periods),
	}
	if len(snap.Daily.Bars) > 0 {
		snap.Date = snap.Daily.Bars[len(snap.Daily.Bars)-1].Date
	}

	if suff := series.CheckSufficiency(snap.Daily, p.periods); !suff.AllPass {
		for _, check := range suff.Checks {
			if !check.Pass {
				p.logger.Printf("[dataprovider] %s daily: %s (want %s, got %s)", code, check.Name, check.Threshold, check.Actual)
			}
		}
	}

	for _, g := range []domain.Granularity{domain.GranularityWeekly, domain.GranularityMonthly} {
		bars, err := p.loadBars(ctx, code, g)
		if err != nil {
			p.logger.Printf("[dataprovider] %s %s fetch failed, resampling daily: %v", code, g, err)
			bars = series.Resample(dailyBars, g)
		}
		prepared := series.Prepare(code, g, bars, p.periods)
		switch g {
		case domain.GranularityWeekly:
			snap.Weekly = prepared
		case domain.GranularityMonthly:
			snap.Monthly = prepared
		}
	}
	return snap, nil
}

// loadBars returns cached bars when they are still fresh, otherwise
// refetches from the source. A stale cache whose refetch fails is not
// reused; the caller decides how to degrade.
func (p *Provider) loadBars(ctx context.Context, code string, g domain.Granularity) ([]domain.Bar, error) {
	cached, err := p.cache.Load(code, g)
	if err == nil && len(cached) > 0 && (p.offline || IsFresh(maxDate(cached), p.now())) {
		observability.RecordCacheHit()
		return cached, nil
	}
	observability.RecordCacheMiss()
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		p.logger.Printf("[dataprovider] %s %s cache unreadable: %v", code, g, err)
	}

	bars, err := p.source.FetchKline(ctx, code, g)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	if p.saveOffline {
		if err := p.cache.Store(code, g, bars); err != nil {
			p.logger.Printf("[dataprovider] %s %s cache write failed: %v", code, g, err)
		}
	}
	if p.barSink != nil {
		if err := p.barSink.InsertBars(ctx, code, g, bars); err != nil {
			p.logger.Printf("[dataprovider] %s %s analytics insert failed: %v", code, g, err)
		} else {
			observability.RecordBarsIngested(len(bars))
		}
	}
	return bars, nil
}
