package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/leakgate/models"
)

// contentSelectors is the ordered candidate list for locating the
// article body in the rendered page. Order matters only for ties; the
// selector yielding the most text wins.
var contentSelectors = []string{
	"article",
	"main",
	"[itemprop=articleBody]",
	"[role=main]",
	".article-body",
	".article-content",
	".post-content",
	".entry-content",
	".story-body",
	"#article-body",
	"#content",
}

// minDOMTextBytes is the floor below which selector extraction is
// treated as a miss and readability takes over on the full page.
const minDOMTextBytes = 500

// DOMChannel reads the rendered page after the session-mutation phase
// (overlay removal, storage reset) and extracts the largest content
// region. Client-side-only gates leave the full text in the DOM; this
// channel is the one that catches them.
type DOMChannel struct {
	sess Session
}

// NewDOM creates the DOM extraction channel over an already navigated
// session.
func NewDOM(sess Session) *DOMChannel {
	return &DOMChannel{sess: sess}
}

func (c *DOMChannel) Name() string { return ChannelDOM }

// Probe evaluates each content selector against the live page, picks
// the one yielding the most visible text, and returns its markup as a
// single candidate. When no selector yields enough text it falls back
// to readability extraction over the full rendered HTML.
func (c *DOMChannel) Probe(ctx context.Context, target *models.Target) Result {
	bestSelector := ""
	bestLen := 0
	for _, sel := range contentSelectors {
		if ctx.Err() != nil {
			return Inconclusive("aborted: %v", ctx.Err())
		}
		js := fmt.Sprintf(`() => {
			const el = document.querySelector(%q);
			return el ? el.innerText : "";
		}`, sel)
		textLen := len(c.sess.EvalText(js))
		if textLen > bestLen {
			bestSelector, bestLen = sel, textLen
		}
	}

	if bestLen >= minDOMTextBytes {
		js := fmt.Sprintf(`() => {
			const el = document.querySelector(%q);
			return el ? el.outerHTML : "";
		}`, bestSelector)
		body := c.sess.EvalText(js)
		if body != "" {
			slog.Debug("dom: selector extraction",
				"selector", bestSelector, "text_bytes", bestLen)
			return Success([]models.RawCandidate{{
				Body:        []byte(body),
				ContentType: "text/html",
				SourceURL:   target.URL,
				Method:      "EVAL",
				Channel:     ChannelDOM,
				Note:        "selector " + bestSelector,
			}})
		}
	}

	// Fall back to readability over the whole page: content regions
	// without any of the known selectors still score on text density.
	raw, err := c.sess.HTML()
	if err != nil {
		return Inconclusive("page HTML unavailable: %v", err)
	}
	parsedURL, err := url.Parse(target.URL)
	if err != nil {
		return Inconclusive("target URL does not parse: %v", err)
	}
	article, err := readability.FromReader(strings.NewReader(raw), parsedURL)
	if err != nil || article.Content == "" {
		return Success(nil)
	}
	return Success([]models.RawCandidate{{
		Body:        []byte(article.Content),
		ContentType: "text/html",
		SourceURL:   target.URL,
		Method:      "EVAL",
		Channel:     ChannelDOM,
		Note:        "readability extraction",
	}})
}
