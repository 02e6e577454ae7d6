package probe

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/leakgate/models"
)

// hydrationScriptSelectors locate embedded-state script blocks in
// rendered markup: framework hydration payloads and JSON-LD structured
// data. Sites that gate rendering client-side routinely ship the full
// article body inside these.
var hydrationScriptSelectors = []struct {
	selector string
	label    string
}{
	{`script#__NEXT_DATA__`, "__NEXT_DATA__"},
	{`script#__NUXT_DATA__`, "__NUXT_DATA__"},
	{`script[type="application/ld+json"]`, "JSON-LD"},
	{`script[type="application/json"]`, "embedded JSON"},
}

// hydrationGlobals are window-level state objects checked after the
// script blocks, serialized in-page.
var hydrationGlobals = []string{
	"__INITIAL_STATE__",
	"__APOLLO_STATE__",
	"__PRELOADED_STATE__",
	"Fusion",
}

// HydrationChannel scans the rendered markup for embedded JSON state
// and walks each payload for an article-body-shaped field.
type HydrationChannel struct {
	sess Session
}

// NewHydration creates the hydration-blob channel over an already
// navigated session.
func NewHydration(sess Session) *HydrationChannel {
	return &HydrationChannel{sess: sess}
}

func (c *HydrationChannel) Name() string { return ChannelHydration }

// Probe collects every embedded-state payload on the page, parses each
// as JSON, and emits one candidate per payload whose tree holds
// recoverable article text. Recovered text is re-wrapped in article
// markup so classification sees the shape a rendered page would have.
func (c *HydrationChannel) Probe(ctx context.Context, target *models.Target) Result {
	raw, err := c.sess.HTML()
	if err != nil {
		return Inconclusive("page HTML unavailable: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return Inconclusive("rendered markup does not parse: %v", err)
	}

	var candidates []models.RawCandidate
	emit := func(payload []byte, label string) {
		text, ok := recoverArticleText(payload)
		if !ok {
			return
		}
		candidates = append(candidates, models.RawCandidate{
			Body:        wrapRecovered(text),
			ContentType: "text/html",
			SourceURL:   target.URL,
			Method:      "EVAL",
			Channel:     ChannelHydration,
			Note:        "article body in " + label,
		})
	}

	for _, block := range hydrationScriptSelectors {
		doc.Find(block.selector).Each(func(_ int, s *goquery.Selection) {
			payload := strings.TrimSpace(s.Text())
			if payload != "" {
				emit([]byte(payload), block.label)
			}
		})
	}

	for _, global := range hydrationGlobals {
		if ctx.Err() != nil {
			return Inconclusive("aborted: %v", ctx.Err())
		}
		js := `() => {
			try { return JSON.stringify(window["` + global + `"]) || ""; }
			catch (e) { return ""; }
		}`
		payload := c.sess.EvalText(js)
		if payload != "" && payload != "null" {
			emit([]byte(payload), "window."+global)
		}
	}

	return Success(candidates)
}
