package probe

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/leakgate/fetch"
	"github.com/use-agent/leakgate/models"
)

const (
	defaultArchiveBase = "https://web.archive.org"

	// archivePollAttempts bounds snapshot polling; archivePollInterval
	// is the fixed delay between attempts.
	archivePollAttempts = 5
	archivePollInterval = 3 * time.Second
)

// ArchiveChannel submits the target to a snapshot service and polls for
// the stored copy. Archives crawl with privileged identities, so a
// snapshot often holds content the default identity never sees. The
// channel is bounded on every axis: one submission, a fixed number of
// polls, and cancellation against the run deadline.
type ArchiveChannel struct {
	client       *fetch.Client
	base         string
	pollInterval time.Duration
}

// NewArchive creates the archive channel against the default snapshot
// service. base overrides the service root when non-empty; tests point
// it at a local server.
func NewArchive(client *fetch.Client, base string) *ArchiveChannel {
	if base == "" {
		base = defaultArchiveBase
	}
	return &ArchiveChannel{
		client:       client,
		base:         strings.TrimRight(base, "/"),
		pollInterval: archivePollInterval,
	}
}

func (c *ArchiveChannel) Name() string { return ChannelArchive }

// Probe submits the target URL to the save endpoint, extracts the
// snapshot reference from the response, then polls it. The first
// retrieval containing recognizable page markup becomes the single
// candidate. Exhausting the poll attempts is a conclusive negative,
// not an error: the service answered, it just has no usable snapshot.
func (c *ArchiveChannel) Probe(ctx context.Context, target *models.Target) Result {
	resp, err := c.client.Do(ctx, fetch.Request{
		Method:  "GET",
		URL:     c.base + "/save/" + target.URL,
		Timeout: target.RequestTimeout,
	})
	if err != nil {
		return Inconclusive("snapshot submission failed: %v", err)
	}

	snapshotURL := c.snapshotRef(resp, target.URL)

	for attempt := 1; attempt <= archivePollAttempts; attempt++ {
		poll, err := c.client.Do(ctx, fetch.Request{
			Method:  "GET",
			URL:     snapshotURL,
			Timeout: target.RequestTimeout,
		})
		if err == nil && poll.StatusCode == 200 && hasPageMarkup(poll.Body) {
			return Success([]models.RawCandidate{{
				Body:        poll.Body,
				ContentType: poll.ContentType,
				SourceURL:   snapshotURL,
				Method:      "GET",
				Channel:     ChannelArchive,
				Note:        "snapshot retrieved on poll " + strconv.Itoa(attempt),
			}})
		}
		if attempt == archivePollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Inconclusive("aborted during snapshot polling: %v", ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
	return Success(nil)
}

// snapshotRef extracts the stored-snapshot URL from the save response.
// The service reports it in Content-Location; absent that, the latest-
// snapshot redirect endpoint is used.
func (c *ArchiveChannel) snapshotRef(resp *fetch.Response, targetURL string) string {
	if loc := resp.Header.Get("Content-Location"); loc != "" {
		if strings.HasPrefix(loc, "http") {
			return loc
		}
		return c.base + loc
	}
	return c.base + "/web/2/" + targetURL
}

// hasPageMarkup reports whether a snapshot body looks like a rendered
// page rather than a service placeholder.
func hasPageMarkup(body []byte) bool {
	lowered := strings.ToLower(string(body))
	return strings.Contains(lowered, "<html") || strings.Contains(lowered, "<article")
}
