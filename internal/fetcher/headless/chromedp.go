// Package headless drives headless Chrome to render one city page.
package headless

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/vietair/aqi-crawler/internal/scrape"
)

const (
	defaultPanelSelector = `[class*="aqi-value"]`
	defaultIconSubstring = "ic-weather-"

	viewportWidth  = 1280
	viewportHeight = 720
)

// Config controls the browser session.
type Config struct {
	// UserAgent is sent on every request; a realistic desktop string
	// keeps the site's bot heuristics quiet.
	UserAgent string
	// NavTimeout bounds the whole navigate-and-extract sequence.
	NavTimeout time.Duration
	// SelectorTimeout bounds the wait for the data panel to appear.
	SelectorTimeout time.Duration
	// SettleDelay gives client-side rendering time to fill in text after
	// the panel element exists.
	SettleDelay time.Duration
	// PanelSelector overrides the attribute-substring selector for the
	// main data container.
	PanelSelector string
}

func (c *Config) applyDefaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 45 * time.Second
	}
	if c.SelectorTimeout <= 0 {
		c.SelectorTimeout = 30 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.PanelSelector == "" {
		c.PanelSelector = defaultPanelSelector
	}
}

// Session owns one browser process. Every retry attempt gets a fresh
// Session so a wedged renderer cannot poison the next attempt.
type Session struct {
	cfg           Config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        *zap.Logger
}

// NewSession launches a headless browser with a fixed viewport and the
// configured user agent.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	cfg.applyDefaults()
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user agent is required")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(viewportWidth, viewportHeight),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &Session{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger,
	}, nil
}

// Close tears down the browser and its driving process. Best-effort: the
// cancels release the process handle even when the browser already died,
// so Close can never mask the error that ended the attempt.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.browserCancel()
	s.allocCancel()
}

// FetchPanel navigates to url, waits for the data panel and returns its
// text plus the weather icon source. A missing icon yields an empty
// IconSrc, not an error; every navigation or wait failure is transient
// and propagates to the retry loop.
func (s *Session) FetchPanel(ctx context.Context, url string) (scrape.Panel, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, s.cfg.NavTimeout)
	defer cancelRun()

	stopForward := forwardCancel(ctx, cancelRun)
	defer stopForward()

	var panel scrape.Panel
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(s.cfg.UserAgent),
		chromedp.EmulateViewport(viewportWidth, viewportHeight),
		navigateDOMReady(url),
		s.waitForPanel(),
		chromedp.Sleep(s.cfg.SettleDelay),
		chromedp.Text(s.cfg.PanelSelector, &panel.Text, chromedp.ByQuery),
		readIconSrc(&panel.IconSrc),
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return scrape.Panel{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	return panel, nil
}

// navigateDOMReady starts navigation and returns once the DOM is parsed,
// without waiting for images and other sub-resources the panel text does
// not depend on.
func navigateDOMReady(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		domReady := make(chan struct{})
		var once sync.Once

		listenCtx, cancelListen := context.WithCancel(ctx)
		defer cancelListen()
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			if _, ok := ev.(*page.EventDomContentEventFired); ok {
				once.Do(func() { close(domReady) })
			}
		})

		if _, _, _, _, err := page.Navigate(url).Do(ctx); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}

		select {
		case <-domReady:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("wait dom content: %w", ctx.Err())
		}
	}
}

// waitForPanel waits for the data container under its own timeout so a
// slow selector fails before the navigation budget does, with a clearer
// error.
func (s *Session) waitForPanel() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, s.cfg.SelectorTimeout)
		defer cancel()
		err := chromedp.WaitVisible(s.cfg.PanelSelector, chromedp.ByQuery).Do(waitCtx)
		if err != nil {
			return fmt.Errorf("wait for panel %q: %w", s.cfg.PanelSelector, err)
		}
		return nil
	}
}

// readIconSrc queries the weather icon inside the page so an absent icon
// comes back as an empty string instead of blocking on a node wait.
func readIconSrc(dst *string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		expr := fmt.Sprintf(
			`(() => { const el = document.querySelector('img[src*=%q]'); return el ? el.getAttribute("src") : ""; })()`,
			defaultIconSubstring,
		)
		if err := chromedp.Evaluate(expr, dst).Do(ctx); err != nil {
			return fmt.Errorf("read icon src: %w", err)
		}
		return nil
	}
}

// forwardCancel propagates cancellation of the caller's context into the
// chromedp task context, which descends from the browser context rather
// than from the caller.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
