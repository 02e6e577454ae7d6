package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/leakgate/classify"
	"github.com/use-agent/leakgate/fetch"
	"github.com/use-agent/leakgate/models"
)

// articleText builds n words of neutral prose split into paragraphs.
func articleText(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "word%04d ", i)
		if i > 0 && i%80 == 0 {
			b.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// fullArticleHTML renders n words inside a semantic article container.
func fullArticleHTML(n int) string {
	var b strings.Builder
	b.WriteString("<html><body><article><h1>Heading</h1>")
	for _, para := range strings.Split(articleText(n), "\n\n") {
		b.WriteString("<p>" + para + "</p>")
	}
	b.WriteString("</article></body></html>")
	return b.String()
}

func testClient(t *testing.T) *fetch.Client {
	t.Helper()
	return fetch.New(5*time.Second, 1000, 1000)
}

func testTarget(t *testing.T, rawURL string) *models.Target {
	t.Helper()
	target, err := models.NewTarget(rawURL, "", 5*time.Second)
	if err != nil {
		t.Fatalf("NewTarget(%q): %v", rawURL, err)
	}
	return target
}

func TestJSONVariants(t *testing.T) {
	variants := jsonVariants("https://example.com/news/some-story")

	want := []string{
		"https://example.com/news/some-story.json",
		"https://example.com/news/some-story?format=json",
		"https://example.com/news/some-story?view=json",
		"https://example.com/api/news/some-story",
		"https://example.com/wp-json/wp/v2/posts?slug=some-story",
	}
	if len(variants) != len(want) {
		t.Fatalf("got %d variants, want %d: %v", len(variants), len(want), variants)
	}
	for i, w := range want {
		if variants[i] != w {
			t.Errorf("variant[%d] = %q, want %q", i, variants[i], w)
		}
	}
}

// A JSON endpoint serving the full article body must yield exactly one
// candidate that classifies positively.
func TestJSONAPIChannel_LeakyEndpoint(t *testing.T) {
	body := articleText(1500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ".json") {
			http.NotFound(w, r)
			return
		}
		if accept := r.Header.Get("Accept"); !strings.Contains(accept, "application/json") {
			t.Errorf("missing JSON accept header, got %q", accept)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          42,
			"articleBody": body,
		})
	}))
	defer srv.Close()

	ch := NewJSONAPI(testClient(t))
	res := ch.Probe(context.Background(), testTarget(t, srv.URL+"/news/story"))

	if res.Inconclusive {
		t.Fatalf("channel inconclusive: %s", res.Reason)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
	cand := res.Candidates[0]
	if cand.Channel != ChannelJSONAPI {
		t.Errorf("candidate channel = %q", cand.Channel)
	}

	sig := classify.New(nil).Classify(cand.Body, cand.ContentType, models.Baseline{})
	if !sig.Verdict {
		t.Errorf("recovered article body did not classify positively: %+v", sig)
	}
	if sig.Score != models.ScoreHigh {
		t.Errorf("score = %q, want HIGH", sig.Score)
	}
}

func TestJSONAPIChannel_NonJSONResponsesSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>not json</body></html>")
	}))
	defer srv.Close()

	ch := NewJSONAPI(testClient(t))
	res := ch.Probe(context.Background(), testTarget(t, srv.URL+"/news/story"))

	if res.Inconclusive {
		t.Fatalf("channel inconclusive: %s", res.Reason)
	}
	if len(res.Candidates) != 0 {
		t.Fatalf("got %d candidates, want 0", len(res.Candidates))
	}
}

func TestAltViewChannel_Qualification(t *testing.T) {
	full := fullArticleHTML(1200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/amp"):
			// Qualifies: 200, HTML content type, root html tag.
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, full)
		case r.URL.RawQuery == "print=1":
			// Disqualified: JSON content type.
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"error":"unsupported"}`)
		case r.URL.RawQuery == "share=1":
			// Disqualified: no root html tag.
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<div>partial fragment</div>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ch := NewAltView(testClient(t))
	res := ch.Probe(context.Background(), testTarget(t, srv.URL+"/news/story"))

	if res.Inconclusive {
		t.Fatalf("channel inconclusive: %s", res.Reason)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1 (amp only): %+v", len(res.Candidates), res.Candidates)
	}
	if !strings.HasSuffix(res.Candidates[0].SourceURL, "/amp") {
		t.Errorf("qualifying candidate came from %q, want the /amp variant", res.Candidates[0].SourceURL)
	}
}

// Only one user-agent/referer combination serves the full article. The
// channel must emit exactly one candidate and stop requesting as soon
// as that combination hits.
func TestUAMatrixChannel_FirstSuccessShortCircuits(t *testing.T) {
	const hitUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	const hitReferer = "https://www.google.com/"

	full := fullArticleHTML(1200)
	teaser := "<html><body><p>Subscribe to continue reading.</p></body></html>"

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "text/html")
		if r.Header.Get("User-Agent") == hitUA && r.Header.Get("Referer") == hitReferer {
			fmt.Fprint(w, full)
			return
		}
		fmt.Fprint(w, teaser)
	}))
	defer srv.Close()

	// UA outer, referer inner: the hit sits at combination 7 of 16.
	uas := []string{"curl/8.0", hitUA, "WrongBot/1.0", "OtherBot/2.0"}
	refs := []string{"", "https://t.co/", hitReferer, "https://news.google.com/"}

	ch := NewUAMatrix(testClient(t), classify.New(nil), uas, refs)
	res := ch.Probe(context.Background(), testTarget(t, srv.URL+"/news/story"))

	if res.Inconclusive {
		t.Fatalf("channel inconclusive: %s", res.Reason)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want exactly 1", len(res.Candidates))
	}
	if requests != 7 {
		t.Errorf("server saw %d requests, want 7 (short-circuit after the hit)", requests)
	}
}

// A snapshot service that never produces a retrievable snapshot must
// end as a conclusive negative after the bounded poll attempts, with no
// propagated error.
func TestArchiveChannel_SnapshotNeverAppears(t *testing.T) {
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/save/") {
			w.Header().Set("Content-Location", "/web/20260831000000/https://example.com/story")
			w.WriteHeader(http.StatusOK)
			return
		}
		polls++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	ch := NewArchive(testClient(t), srv.URL)
	ch.pollInterval = time.Millisecond

	res := ch.Probe(context.Background(), testTarget(t, "https://example.com/story"))

	if res.Inconclusive {
		t.Fatalf("channel inconclusive: %s", res.Reason)
	}
	if len(res.Candidates) != 0 {
		t.Fatalf("got %d candidates, want 0", len(res.Candidates))
	}
	if polls != archivePollAttempts {
		t.Errorf("server saw %d polls, want %d", polls, archivePollAttempts)
	}
}

func TestArchiveChannel_SnapshotRetrieved(t *testing.T) {
	full := fullArticleHTML(1200)
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/save/") {
			w.Header().Set("Content-Location", "/web/20260831000000/https://example.com/story")
			w.WriteHeader(http.StatusOK)
			return
		}
		polls++
		if polls < 3 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, full)
	}))
	defer srv.Close()

	ch := NewArchive(testClient(t), srv.URL)
	ch.pollInterval = time.Millisecond

	res := ch.Probe(context.Background(), testTarget(t, "https://example.com/story"))

	if res.Inconclusive {
		t.Fatalf("channel inconclusive: %s", res.Reason)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
	if polls != 3 {
		t.Errorf("server saw %d polls, want 3 (stop at first success)", polls)
	}
}
