// Package probe runs a cheap HTTP preflight before a browser is launched.
//
// The city pages are client-rendered, so the plain HTTP body is useless
// for extraction; what the preflight buys is failing a retry attempt in
// milliseconds when the site is down or rate-limiting, instead of paying
// for a Chrome startup first. Preflight failures are transient failures.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Config controls the preflight collector.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Preflight checks that a city URL answers with a non-error status.
type Preflight struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Preflight.
func New(cfg Config, logger *zap.Logger) *Preflight {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Preflight{cfg: cfg, logger: logger}
}

// Check fetches rawURL once. Transport errors and non-2xx statuses come
// back as errors; the caller treats them as transient and retries.
func (p *Preflight) Check(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("preflight canceled: %w", err)
	}

	c := colly.NewCollector(colly.UserAgent(p.cfg.UserAgent))
	c.SetRequestTimeout(p.cfg.Timeout)

	var status int
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(rawURL); err != nil {
		return fmt.Errorf("preflight %s (status %d): %w", rawURL, status, err)
	}
	c.Wait()

	p.logger.Debug("preflight ok",
		zap.String("url", rawURL),
		zap.Int("status", status),
	)
	return nil
}
