package probe

import (
	"context"
	"strings"

	"github.com/use-agent/leakgate/fetch"
	"github.com/use-agent/leakgate/fingerprint"
	"github.com/use-agent/leakgate/models"
)

// fragmentKeywords mark a captured URL as a fragment candidate: a
// response likely to carry a partial rendered view or the article data
// itself, and therefore worth one direct refetch.
var fragmentKeywords = []string{
	"article", "story", "content", "body", "fragment",
	"graphql", "api", "fusion", "prerender", "render",
}

// maxRefetches bounds the direct requests one interception pass issues.
const maxRefetches = 8

// InterceptChannel consumes the network captures recorded during page
// navigation and re-fetches the interesting ones directly, outside the
// browser session. A gated page often assembles itself from ungated
// sub-resources; the captures are where those show up.
type InterceptChannel struct {
	client   *fetch.Client
	captures []models.NetCapture
}

// NewIntercept creates the interception channel over captures already
// drained from the session by the orchestrator.
func NewIntercept(client *fetch.Client, captures []models.NetCapture) *InterceptChannel {
	return &InterceptChannel{client: client, captures: captures}
}

func (c *InterceptChannel) Name() string { return ChannelIntercept }

// refetchWorthy applies the fragment-candidate filter: a 200 capture
// whose URL matches a fragment keyword, or whose content type is HTML.
func refetchWorthy(capture models.NetCapture) bool {
	if capture.Status != 200 {
		return false
	}
	if strings.Contains(strings.ToLower(capture.ContentType), "text/html") {
		return true
	}
	lowered := strings.ToLower(capture.URL)
	for _, kw := range fragmentKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// Probe re-issues a direct GET for each fragment candidate, bounded by
// maxRefetches. JSON responses are walked for an article-body field;
// HTML responses are forwarded as-is. The original capture hash rides
// along in the note so evidence ties back to what the browser saw.
func (c *InterceptChannel) Probe(ctx context.Context, target *models.Target) Result {
	var candidates []models.RawCandidate
	refetched := 0
	for _, capture := range c.captures {
		if refetched >= maxRefetches {
			break
		}
		if ctx.Err() != nil {
			return Inconclusive("aborted: %v", ctx.Err())
		}
		if !refetchWorthy(capture) {
			continue
		}
		// Skip the top document itself; the DOM channel owns that.
		if capture.URL == target.URL {
			continue
		}
		refetched++

		resp, err := c.client.Do(ctx, fetch.Request{
			Method:  "GET",
			URL:     capture.URL,
			Timeout: target.RequestTimeout,
		})
		if err != nil || resp.StatusCode != 200 {
			continue
		}

		note := "refetched capture " + fingerprint.Short(capture.SHA256)
		if strings.Contains(strings.ToLower(resp.ContentType), "json") {
			text, ok := recoverArticleText(resp.Body)
			if !ok {
				continue
			}
			candidates = append(candidates, models.RawCandidate{
				Body:        wrapRecovered(text),
				ContentType: "text/html",
				SourceURL:   capture.URL,
				Method:      "GET",
				Channel:     ChannelIntercept,
				Note:        note + ", article body in JSON",
			})
			continue
		}
		candidates = append(candidates, models.RawCandidate{
			Body:        resp.Body,
			ContentType: resp.ContentType,
			SourceURL:   capture.URL,
			Method:      "GET",
			Channel:     ChannelIntercept,
			Note:        note,
		})
	}
	return Success(candidates)
}
