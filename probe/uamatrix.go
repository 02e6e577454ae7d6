package probe

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/use-agent/leakgate/classify"
	"github.com/use-agent/leakgate/fetch"
	"github.com/use-agent/leakgate/models"
)

// defaultUserAgents is the identity list for the request matrix.
// Crawler identities come first: serving full content to search and
// social bots while gating browsers is the canonical misconfiguration.
var defaultUserAgents = []string{
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	"Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)",
	"facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)",
	fetch.DefaultUserAgent,
}

// defaultReferers is the traffic-source list. The empty referer is a
// deliberate member: some gates key on referer presence, not value.
var defaultReferers = []string{
	"https://www.google.com/",
	"https://news.google.com/",
	"https://t.co/",
	"",
}

// combo is one cell of the identity matrix.
type combo struct {
	userAgent string
	referer   string
}

// combos yields the matrix cells in the defined order: user agent
// outer, referer inner. The consumer stops the sequence at the first
// satisfying result, which is what makes "first success short-circuits"
// reproducible.
func combos(userAgents, referers []string) iter.Seq[combo] {
	return func(yield func(combo) bool) {
		for _, ua := range userAgents {
			for _, ref := range referers {
				if !yield(combo{userAgent: ua, referer: ref}) {
					return
				}
			}
		}
	}
}

// UAMatrixChannel issues one request per user-agent/referer combination
// and classifies each response in place. Unlike the other channels it
// classifies eagerly: the first positive combination short-circuits the
// rest of the matrix, so the remaining cells are never requested.
type UAMatrixChannel struct {
	client     *fetch.Client
	classifier *classify.Classifier
	userAgents []string
	referers   []string
}

// NewUAMatrix creates the identity-matrix channel. Empty list arguments
// fall back to the defaults.
func NewUAMatrix(client *fetch.Client, classifier *classify.Classifier, userAgents, referers []string) *UAMatrixChannel {
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}
	if len(referers) == 0 {
		referers = defaultReferers
	}
	return &UAMatrixChannel{
		client:     client,
		classifier: classifier,
		userAgents: userAgents,
		referers:   referers,
	}
}

func (c *UAMatrixChannel) Name() string { return ChannelUAMatrix }

// Probe walks the matrix sequentially with bounded per-request
// timeouts. It returns at most one candidate: the first combination
// whose response classifies positively against the teaser baseline.
func (c *UAMatrixChannel) Probe(ctx context.Context, target *models.Target) Result {
	baseline := target.Baseline()
	attempted := 0

	for cell := range combos(c.userAgents, c.referers) {
		if ctx.Err() != nil {
			return Inconclusive("aborted after %d combinations: %v", attempted, ctx.Err())
		}
		attempted++

		headers := map[string]string{
			"User-Agent": cell.userAgent,
			"Accept":     "text/html,application/xhtml+xml",
		}
		if cell.referer != "" {
			headers["Referer"] = cell.referer
		}
		resp, err := c.client.Do(ctx, fetch.Request{
			Method:  "GET",
			URL:     target.URL,
			Headers: headers,
			Timeout: target.RequestTimeout,
		})
		if err != nil || resp.StatusCode != 200 {
			continue
		}
		if !strings.Contains(strings.ToLower(resp.ContentType), "text/html") {
			continue
		}

		sig := c.classifier.Classify(resp.Body, resp.ContentType, baseline)
		if !sig.Verdict {
			continue
		}
		slog.Debug("uamatrix: positive combination",
			"user_agent", cell.userAgent, "referer", cell.referer,
			"attempted", attempted)
		return Success([]models.RawCandidate{{
			Body:        resp.Body,
			ContentType: resp.ContentType,
			SourceURL:   target.URL,
			Method:      "GET",
			Channel:     ChannelUAMatrix,
			Note: fmt.Sprintf("UA %q, referer %q",
				identityLabel(cell.userAgent), cell.referer),
		}})
	}
	return Success(nil)
}

// identityLabel shortens a full user-agent string to its product token
// for evidence notes.
func identityLabel(ua string) string {
	if i := strings.Index(ua, "compatible; "); i >= 0 {
		rest := ua[i+len("compatible; "):]
		if j := strings.IndexAny(rest, ";)"); j >= 0 {
			return rest[:j]
		}
		return rest
	}
	if i := strings.IndexByte(ua, ' '); i >= 0 {
		return ua[:i]
	}
	return ua
}
