// Package pipeline sequences fetch, extract, validate, and persist for
// every configured city, with bounded retries for transient failures.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vietair/aqi-crawler/internal/city"
	"github.com/vietair/aqi-crawler/internal/clock"
	"github.com/vietair/aqi-crawler/internal/scrape"
	"github.com/vietair/aqi-crawler/internal/validate"
)

// OutcomeKind classifies how a city's cycle ended. Transient failures and
// data-quality rejections are disjoint: only the former is retried.
type OutcomeKind int

const (
	// OutcomeSuccess means a validated reading was persisted.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRejected means the page was fetched but at least one field
	// failed validation. Not retried: the source data will not change
	// within the cycle.
	OutcomeRejected
	// OutcomeFailed means every attempt hit a transient failure.
	OutcomeFailed
)

// Outcome is the tagged result of one city's cycle.
type Outcome struct {
	Kind      OutcomeKind
	Reading   validate.Reading
	Rejection *validate.RejectionError
	Err       error
	Attempts  int
}

// PanelFetcher is one browser session's view of the page. Close is
// best-effort teardown.
type PanelFetcher interface {
	FetchPanel(ctx context.Context, url string) (scrape.Panel, error)
	Close()
}

// SessionFactory launches a fresh browser session. Each attempt gets its
// own so a wedged browser cannot poison the next attempt.
type SessionFactory func() (PanelFetcher, error)

// Writer appends a validated reading to the city's time-series file.
type Writer interface {
	Append(reading validate.Reading, slug string) (string, error)
}

// Recorder mirrors readings into secondary storage. Mirror failures are
// logged, never fatal: the CSV file is the source of truth.
type Recorder interface {
	Record(ctx context.Context, slug string, reading validate.Reading) error
}

// Preflight checks site reachability before a browser launch.
type Preflight interface {
	Check(ctx context.Context, url string) error
}

// Config controls retry behavior and pacing.
type Config struct {
	// MaxAttempts bounds attempts per city.
	MaxAttempts int
	// RetryBackoff is the fixed delay between attempts.
	RetryBackoff time.Duration
	// CityQPS paces city starts; zero disables pacing.
	CityQPS float64
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
}

// Pipeline runs one crawl cycle over the city registry.
type Pipeline struct {
	cfg        Config
	newSession SessionFactory
	preflight  Preflight
	writer     Writer
	mirror     Recorder
	clk        clock.Clock
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New builds a Pipeline. preflight and mirror may be nil.
func New(
	cfg Config,
	newSession SessionFactory,
	preflight Preflight,
	writer Writer,
	mirror Recorder,
	clk clock.Clock,
	logger *zap.Logger,
) *Pipeline {
	cfg.applyDefaults()
	var limiter *rate.Limiter
	if cfg.CityQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.CityQPS), 1)
	}
	return &Pipeline{
		cfg:        cfg,
		newSession: newSession,
		preflight:  preflight,
		writer:     writer,
		mirror:     mirror,
		clk:        clk,
		limiter:    limiter,
		logger:     logger,
	}
}

// Run processes the cities strictly sequentially. Per-city failures are
// logged and skipped; Run only returns an error when the context ends.
func (p *Pipeline) Run(ctx context.Context, cities []city.City) error {
	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID))
	log.Info("crawl cycle starting", zap.Int("cities", len(cities)))

	var succeeded, rejected, failed int
	for _, c := range cities {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("pace cities: %w", err)
			}
		}

		outcome := p.ProcessCity(ctx, c)
		cityLog := log.With(zap.String("city", c.Slug), zap.Int("attempts", outcome.Attempts))
		switch outcome.Kind {
		case OutcomeSuccess:
			succeeded++
			cityLog.Info("reading persisted",
				zap.String("aqi", outcome.Reading.AQI),
				zap.String("wind_speed", outcome.Reading.WindSpeed),
				zap.String("humidity", outcome.Reading.Humidity),
			)
		case OutcomeRejected:
			rejected++
			cityLog.Warn("reading rejected",
				zap.Strings("fields", outcome.Rejection.FieldNames()),
				zap.String("detail", outcome.Rejection.Error()),
			)
		case OutcomeFailed:
			failed++
			cityLog.Error("city skipped this cycle", zap.Error(outcome.Err))
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	log.Info("crawl cycle finished",
		zap.Int("succeeded", succeeded),
		zap.Int("rejected", rejected),
		zap.Int("failed", failed),
	)
	return nil
}

// ProcessCity runs the bounded retry loop for one city.
func (p *Pipeline) ProcessCity(ctx context.Context, c city.City) Outcome {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		attemptsTotal.Inc()

		reading, rejection, err := p.attempt(ctx, c)
		switch {
		case rejection != nil:
			rejectsTotal.Inc()
			return Outcome{Kind: OutcomeRejected, Rejection: rejection, Attempts: attempt}

		case err == nil:
			path, writeErr := p.writer.Append(reading, c.Slug)
			if writeErr != nil {
				failuresTotal.Inc()
				return Outcome{Kind: OutcomeFailed, Err: writeErr, Attempts: attempt}
			}
			readingsTotal.Inc()
			p.logger.Debug("reading written", zap.String("path", path))
			p.mirrorReading(ctx, c, reading)
			return Outcome{Kind: OutcomeSuccess, Reading: reading, Attempts: attempt}

		default:
			lastErr = err
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				failuresTotal.Inc()
				return Outcome{Kind: OutcomeFailed, Err: err, Attempts: attempt}
			}
			if attempt < p.cfg.MaxAttempts {
				retriesTotal.Inc()
				p.logger.Warn("transient failure, retrying",
					zap.String("city", c.Slug),
					zap.Int("attempt", attempt),
					zap.Duration("backoff", p.cfg.RetryBackoff),
					zap.Error(err),
				)
				if sleepErr := sleepCtx(ctx, p.cfg.RetryBackoff); sleepErr != nil {
					failuresTotal.Inc()
					return Outcome{Kind: OutcomeFailed, Err: sleepErr, Attempts: attempt}
				}
			}
		}
	}
	failuresTotal.Inc()
	return Outcome{Kind: OutcomeFailed, Err: lastErr, Attempts: p.cfg.MaxAttempts}
}

// attempt runs preflight, fetch, extract, and validate once with an
// isolated browser lifecycle. The returned *RejectionError marks a
// data-quality failure; any plain error is transient.
func (p *Pipeline) attempt(ctx context.Context, c city.City) (validate.Reading, *validate.RejectionError, error) {
	if p.preflight != nil {
		if err := p.preflight.Check(ctx, c.URL); err != nil {
			return validate.Reading{}, nil, err
		}
	}

	session, err := p.newSession()
	if err != nil {
		return validate.Reading{}, nil, fmt.Errorf("launch browser: %w", err)
	}
	defer session.Close()

	panel, err := session.FetchPanel(ctx, c.URL)
	if err != nil {
		return validate.Reading{}, nil, err
	}

	raw := scrape.Extract(panel)
	reading, err := validate.Record(c, raw, p.clk.Now())
	if err != nil {
		var rejection *validate.RejectionError
		if errors.As(err, &rejection) {
			return validate.Reading{}, rejection, nil
		}
		return validate.Reading{}, nil, err
	}
	return reading, nil, nil
}

func (p *Pipeline) mirrorReading(ctx context.Context, c city.City, reading validate.Reading) {
	if p.mirror == nil {
		return
	}
	if err := p.mirror.Record(ctx, c.Slug, reading); err != nil {
		p.logger.Warn("mirror write failed",
			zap.String("city", c.Slug),
			zap.Error(err),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
