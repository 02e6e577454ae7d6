package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/leakgate/models"
)

// Page wraps one borrowed browser tab for the duration of a probe run.
// It implements the probe.Session capability.
type Page struct {
	driver   *Driver
	page     *rod.Page
	recorder *recorder
}

// Release parks the tab and returns it to the driver's pool.
func (p *Page) Release() {
	if p.recorder != nil {
		p.recorder.stop()
		p.recorder = nil
	}
	p.driver.release(p.page)
}

// Navigate loads the target URL with stealth injection, UA/referer
// headers and response interception mounted before the navigation,
// then waits for the DOM to settle.
//
// Order matters: stealth JS and the hijack router only take effect for
// navigations that happen after they are installed.
func (p *Page) Navigate(ctx context.Context, targetURL string, userAgent string) error {
	// ── 1. Stealth injection ────────────────────────────────────────
	if _, evalErr := p.page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}

	// ── 2. UA override + Google referer ─────────────────────────────
	if userAgent != "" {
		if err := (proto.NetworkSetUserAgentOverride{UserAgent: userAgent}).Call(p.page); err != nil {
			slog.Warn("user agent override failed", "error", err)
		}
	}
	headers := map[string]string{}
	if u, parseErr := url.Parse(targetURL); parseErr == nil {
		headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
	}
	if len(headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(headers),
		}.Call(p.page)
	}

	// ── 3. Mount the response recorder BEFORE navigation ────────────
	if p.recorder == nil {
		p.recorder = newRecorder(p.page)
	}

	// ── 4. Navigate with the caller's deadline ──────────────────────
	bound := p.page.Context(ctx)
	if navErr := bound.Navigate(targetURL); navErr != nil {
		return categorizeError(navErr, "navigation to target URL failed")
	}

	// ── 5. Wait for the DOM to settle ───────────────────────────────
	if stableErr := bound.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr)
	}

	return nil
}

// HTML returns the current rendered markup.
func (p *Page) HTML() (string, error) {
	html, err := p.page.HTML()
	if err != nil {
		return "", categorizeError(err, "failed to extract page HTML")
	}
	return html, nil
}

// EvalText evaluates a JS expression and returns its string result,
// swallowing errors: missing optional page state comes back empty.
func (p *Page) EvalText(js string) string {
	res, err := p.page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// RemoveOverlays strips fixed/sticky high-z-index elements (paywall
// curtains, consent banners, modals) and restores scroll on body/html.
// This mutates the session: the orchestrator schedules it before any
// channel that reads the cleaned DOM.
func (p *Page) RemoveOverlays() {
	const js = `() => {
		const els = document.querySelectorAll('*');
		for (const el of els) {
			const style = window.getComputedStyle(el);
			const pos = style.position;
			if (pos === 'fixed' || pos === 'sticky') {
				const z = parseInt(style.zIndex, 10);
				if (z >= 900 || style.zIndex === 'auto') {
					el.remove();
				}
			}
		}
		const selectors = [
			'[class*="paywall"]', '[id*="paywall"]',
			'[class*="meter"]', '[class*="regwall"]',
			'[class*="overlay"]', '[id*="overlay"]',
			'[class*="popup"]', '[id*="popup"]',
			'[class*="consent"]', '[id*="consent"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const style = window.getComputedStyle(el);
				if (style.position === 'fixed' || style.position === 'sticky' || style.position === 'absolute') {
					el.remove();
				}
			});
		}
		document.documentElement.style.overflow = '';
		document.body.style.overflow = '';
		document.documentElement.style.position = '';
		document.body.style.position = '';
	}`
	_, _ = p.page.Eval(js)
}

// ClearState wipes cookies and web storage for the origin. Metered
// paywalls commonly count reads client-side; a clean slate is part of
// the session-mutation phase.
func (p *Page) ClearState() error {
	if err := (proto.NetworkClearBrowserCookies{}).Call(p.page); err != nil {
		return models.NewProbeError(models.ErrCodeChannel, "failed to clear cookies", err)
	}
	_, _ = p.page.Eval(`() => {
		try { localStorage.clear(); sessionStorage.clear(); } catch (e) {}
	}`)
	return nil
}

// DrainCaptures stops the response recorder and returns everything it
// observed. Bodies may still be arriving when navigation completes, so
// the recorder flushes in-flight entries before reporting.
func (p *Page) DrainCaptures() []models.NetCapture {
	if p.recorder == nil {
		return nil
	}
	captures := p.recorder.drain()
	p.recorder = nil
	return captures
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ProbeErrors so callers
// can map them to the right channel outcome.
func categorizeError(err error, msg string) *models.ProbeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewProbeError(models.ErrCodeScanTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewProbeError(models.ErrCodeScanTimeout, "navigation canceled", err)
	default:
		return models.NewProbeError(models.ErrCodeNavigation, msg, err)
	}
}
