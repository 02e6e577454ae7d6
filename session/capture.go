package session

import (
	"net/http"
	"strings"
	"sync"

	"github.com/go-rod/rod"

	"github.com/use-agent/leakgate/fingerprint"
	"github.com/use-agent/leakgate/jsontree"
	"github.com/use-agent/leakgate/models"
)

// interestingContentType reports whether a response is worth recording:
// JSON and GraphQL payloads may carry the article body, HTML fragments
// may be partial rendered views.
func interestingContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "json") ||
		strings.Contains(ct, "graphql") ||
		strings.Contains(ct, "text/html")
}

// recorder observes every response during navigation through a hijack
// router and records metadata only: URL, method, status, content type,
// size, content hash, and for JSON the top-level keys. Full bodies are
// not retained; the interception channel re-fetches what it wants.
type recorder struct {
	router *rod.HijackRouter

	mu       sync.Mutex
	inflight sync.WaitGroup
	captures []models.NetCapture
	stopped  bool
}

// newRecorder mounts the hijack router on the page. The router
// intercepts all requests, loads each real response, records metadata,
// and passes the response through to the browser unchanged.
func newRecorder(page *rod.Page) *recorder {
	r := &recorder{
		router: page.HijackRequests(),
	}

	_ = r.router.Add("*", "", func(ctx *rod.Hijack) {
		r.inflight.Add(1)
		defer r.inflight.Done()

		// Load the real response so both the browser and the recorder
		// see it. On load failure fall through: the browser gets the
		// error, the recorder records nothing.
		if err := ctx.LoadResponse(http.DefaultClient, true); err != nil {
			return
		}

		ct := ctx.Response.Headers().Get("Content-Type")
		if !interestingContentType(ct) {
			return
		}

		body := []byte(ctx.Response.Body())
		capture := models.NetCapture{
			URL:         ctx.Request.URL().String(),
			Method:      ctx.Request.Method(),
			Status:      ctx.Response.Payload().ResponseCode,
			ContentType: ct,
			Size:        len(body),
			SHA256:      fingerprint.Sum(body),
		}
		if strings.Contains(strings.ToLower(ct), "json") {
			if v, err := jsontree.Parse(body); err == nil {
				capture.TopKeys = v.TopLevelKeys()
			}
		}

		r.mu.Lock()
		if !r.stopped {
			r.captures = append(r.captures, capture)
		}
		r.mu.Unlock()
	})

	// router.Run() blocks, so it lives in its own goroutine; it exits
	// when router.Stop() is called.
	go r.router.Run()

	return r
}

// drain waits for in-flight response handlers (bodies may still be
// arriving after the navigation-complete signal), stops the router, and
// returns the recorded captures.
func (r *recorder) drain() []models.NetCapture {
	r.inflight.Wait()

	r.mu.Lock()
	r.stopped = true
	out := make([]models.NetCapture, len(r.captures))
	copy(out, r.captures)
	r.mu.Unlock()

	_ = r.router.Stop()
	return out
}

// stop tears the router down without reading the captures.
func (r *recorder) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	_ = r.router.Stop()
}
