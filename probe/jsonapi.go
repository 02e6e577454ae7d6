package probe

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/use-agent/leakgate/fetch"
	"github.com/use-agent/leakgate/models"
)

// JSONAPIChannel guesses the JSON endpoints a CMS is likely to expose
// for the target page and checks whether any serves the full article
// body without credentials.
type JSONAPIChannel struct {
	client *fetch.Client
}

// NewJSONAPI creates the JSON-endpoint channel.
func NewJSONAPI(client *fetch.Client) *JSONAPIChannel {
	return &JSONAPIChannel{client: client}
}

func (c *JSONAPIChannel) Name() string { return ChannelJSONAPI }

// jsonVariants builds the fixed endpoint-guess set for a page URL:
// the .json suffix, JSON query flags, an /api/ path substitution, and a
// WordPress REST lookup by slug. Unparseable URLs yield nothing.
func jsonVariants(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	trimmed := strings.TrimRight(u.Path, "/")
	slug := path.Base(trimmed)

	build := func(mutate func(v *url.URL)) string {
		v := *u
		mutate(&v)
		return v.String()
	}

	variants := []string{
		build(func(v *url.URL) { v.Path = trimmed + ".json"; v.RawQuery = "" }),
		build(func(v *url.URL) { v.RawQuery = "format=json" }),
		build(func(v *url.URL) { v.RawQuery = "view=json" }),
		build(func(v *url.URL) { v.Path = "/api" + trimmed; v.RawQuery = "" }),
	}
	if slug != "" && slug != "." && slug != "/" {
		variants = append(variants, build(func(v *url.URL) {
			v.Path = "/wp-json/wp/v2/posts"
			v.RawQuery = "slug=" + url.QueryEscape(slug)
		}))
	}
	return variants
}

// Probe fetches each endpoint guess with an Accept: application/json
// header and a bounded timeout. A 200 JSON response whose tree holds an
// article-body field becomes one candidate; everything else is skipped.
// Individual fetch failures do not make the channel inconclusive: the
// endpoint guesses are independent and most are expected to 404.
func (c *JSONAPIChannel) Probe(ctx context.Context, target *models.Target) Result {
	variants := jsonVariants(target.URL)
	if len(variants) == 0 {
		return Inconclusive("no endpoint variants for target URL")
	}

	var candidates []models.RawCandidate
	for _, variant := range variants {
		if ctx.Err() != nil {
			return Inconclusive("aborted: %v", ctx.Err())
		}
		resp, err := c.client.Do(ctx, fetch.Request{
			Method:  "GET",
			URL:     variant,
			Headers: map[string]string{"Accept": "application/json"},
			Timeout: target.RequestTimeout,
		})
		if err != nil || resp.StatusCode != 200 {
			continue
		}
		if !strings.Contains(strings.ToLower(resp.ContentType), "json") {
			continue
		}
		text, ok := recoverArticleText(resp.Body)
		if !ok {
			continue
		}
		candidates = append(candidates, models.RawCandidate{
			Body:        wrapRecovered(text),
			ContentType: "text/html",
			SourceURL:   variant,
			Method:      "GET",
			Channel:     ChannelJSONAPI,
			Note:        "article body in JSON response",
		})
	}
	return Success(candidates)
}
