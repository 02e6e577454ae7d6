package probe

import (
	"context"
	"net/url"
	"strings"

	"github.com/use-agent/leakgate/fetch"
	"github.com/use-agent/leakgate/models"
)

// AltViewChannel fetches alternate renderings of the target page (AMP,
// print, share views) that publishers commonly serve ungated for
// crawler and social-preview traffic.
type AltViewChannel struct {
	client *fetch.Client
}

// NewAltView creates the alternate-view channel.
func NewAltView(client *fetch.Client) *AltViewChannel {
	return &AltViewChannel{client: client}
}

func (c *AltViewChannel) Name() string { return ChannelAltView }

// altVariants builds the fixed alternate-view URL set for a page.
func altVariants(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	build := func(mutate func(v *url.URL)) string {
		v := *u
		mutate(&v)
		return v.String()
	}
	return []string{
		build(func(v *url.URL) { v.Path = strings.TrimRight(v.Path, "/") + "/amp" }),
		build(func(v *url.URL) { v.RawQuery = "print=1" }),
		build(func(v *url.URL) { v.RawQuery = "share=1" }),
		build(func(v *url.URL) { v.RawQuery = "outputType=amp" }),
	}
}

// Probe fetches each variant with an HTML accept header. A variant
// qualifies as a candidate only when the status is 200, the content
// type is HTML, and the body carries a root html tag: soft-404 JSON and
// fragment responses are dropped here rather than sent to the
// classifier.
func (c *AltViewChannel) Probe(ctx context.Context, target *models.Target) Result {
	variants := altVariants(target.URL)
	if len(variants) == 0 {
		return Inconclusive("no view variants for target URL")
	}

	var candidates []models.RawCandidate
	for _, variant := range variants {
		if ctx.Err() != nil {
			return Inconclusive("aborted: %v", ctx.Err())
		}
		resp, err := c.client.Do(ctx, fetch.Request{
			Method:  "GET",
			URL:     variant,
			Headers: map[string]string{"Accept": "text/html,application/xhtml+xml"},
			Timeout: target.RequestTimeout,
		})
		if err != nil || resp.StatusCode != 200 {
			continue
		}
		if !strings.Contains(strings.ToLower(resp.ContentType), "text/html") {
			continue
		}
		if !strings.Contains(strings.ToLower(string(resp.Body)), "<html") {
			continue
		}
		candidates = append(candidates, models.RawCandidate{
			Body:        resp.Body,
			ContentType: resp.ContentType,
			SourceURL:   variant,
			Method:      "GET",
			Channel:     ChannelAltView,
			Note:        "alternate view variant",
		})
	}
	return Success(candidates)
}
