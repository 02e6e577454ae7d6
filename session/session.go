// Package session drives the headless browser used by the DOM,
// hydration and interception channels. It owns the browser lifecycle
// and hands out pages bound to one probe run each.
package session

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/leakgate/config"
	"github.com/use-agent/leakgate/models"
)

// Driver manages the global browser lifecycle and the page pool.
// It is safe for concurrent use.
type Driver struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	cfg         config.BrowserConfig
	activePages atomic.Int32
	startTime   time.Time
}

// NewDriver launches a headless browser and initialises the reusable
// page pool.
func NewDriver(cfg config.BrowserConfig) (*Driver, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewProbeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewProbeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	pool := rod.NewPagePool(cfg.MaxPages)
	slog.Info("page pool created", "maxPages", cfg.MaxPages)

	return &Driver{
		browser:   browser,
		pagePool:  pool,
		cfg:       cfg,
		startTime: time.Now(),
	}, nil
}

// Acquire borrows a page from the pool and wraps it for one probe run.
// The caller must Release the returned Page.
func (d *Driver) Acquire() (*Page, error) {
	d.activePages.Add(1)

	page, err := d.pagePool.Get(func() (*rod.Page, error) {
		return d.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		d.activePages.Add(-1)
		return nil, models.NewProbeError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			err,
		)
	}

	return &Page{driver: d, page: page}, nil
}

// ActivePages returns the number of pages currently borrowed.
func (d *Driver) ActivePages() int {
	return int(d.activePages.Load())
}

// release returns a page to the pool, parking it on about:blank first
// so a stale DOM never leaks into the next run.
func (d *Driver) release(page *rod.Page) {
	if navErr := page.Navigate("about:blank"); navErr != nil {
		slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
	}
	d.pagePool.Put(page)
	d.activePages.Add(-1)
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (d *Driver) Close() {
	slog.Info("session driver shutting down: draining page pool")
	d.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("session driver shutting down: closing browser")
	d.browser.MustClose()
	slog.Info("session driver shutdown complete")
}
