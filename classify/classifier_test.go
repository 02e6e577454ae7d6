package classify

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/use-agent/leakgate/models"
)

// vocab is a small rotation of neutral words that never collide with the
// lexicon term lists.
var vocab = []string{
	"harbor", "granite", "meadow", "lantern", "orchard",
	"timber", "copper", "willow", "ember", "summit",
}

// sentence returns n vocab words joined by spaces.
func sentence(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = vocab[i%len(vocab)]
	}
	return strings.Join(words, " ")
}

// articleHTML builds a markup fixture with the requested word count
// spread over paragraphs, a few headings, and an optional <article>
// container.
func articleHTML(words int, container bool) string {
	var b strings.Builder
	if container {
		b.WriteString("<html><body><article>")
	} else {
		b.WriteString("<html><body><div>")
	}
	perPara := 75
	para := 0
	for words > 0 {
		n := perPara
		if words < perPara {
			n = words
		}
		if para%5 == 0 {
			fmt.Fprintf(&b, "<h2>%s</h2>", sentence(4))
			words -= 4
			if words < 0 {
				break
			}
		}
		fmt.Fprintf(&b, "<p>%s</p>", sentence(n))
		words -= n
		para++
	}
	if container {
		b.WriteString("</article></body></html>")
	} else {
		b.WriteString("</div></body></html>")
	}
	return b.String()
}

func TestClassify_FullArticleWithContainer(t *testing.T) {
	// Teaser baseline of 200 words / 1200 bytes against a 1500-word
	// candidate inside a semantic container.
	c := New(nil)
	body := []byte(articleHTML(1500, true))
	baseline := models.Baseline{Words: 200, Bytes: 1200}

	sig := c.Classify(body, "text/html", baseline)

	if !sig.Verdict {
		t.Fatalf("expected verdict=true, got signal %+v", sig)
	}
	if sig.Score != models.ScoreHigh {
		t.Errorf("expected score HIGH, got %s", sig.Score)
	}
	if !sig.HasSemanticContainer {
		t.Error("expected semantic container to be detected")
	}
	if sig.WordCount <= 1000 {
		t.Errorf("fixture should exceed 1000 words, got %d", sig.WordCount)
	}
	if sig.TextDensity <= 0.3 {
		t.Errorf("fixture density should exceed 0.3, got %f", sig.TextDensity)
	}
}

func TestClassify_Purity(t *testing.T) {
	c := New(nil)
	body := []byte(articleHTML(1200, true))
	baseline := models.Baseline{Words: 100, Bytes: 800}

	first := c.Classify(body, "text/html", baseline)
	for i := 0; i < 5; i++ {
		again := c.Classify(body, "text/html", baseline)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("classification is not pure: %+v vs %+v", first, again)
		}
	}
}

func TestClassify_SubscriptionPromptOverridesStructure(t *testing.T) {
	// An <article> container with plenty of structure, but the plain text
	// contains a subscription prompt: verdict must flip to false.
	c := New(nil)
	body := []byte(strings.Replace(
		articleHTML(1500, true),
		"</article>",
		"<p>This article is reserved for subscribers.</p></article>", 1,
	))

	sig := c.Classify(body, "text/html", models.Baseline{})

	if sig.Verdict {
		t.Fatal("subscription prompt must force verdict=false")
	}
	if sig.Score != models.ScorePaywalled {
		t.Errorf("expected score PAYWALLED, got %s", sig.Score)
	}
	if !sig.SubscriptionPromptHit || !sig.PaywallPromptHit {
		t.Errorf("expected both lexical gates to fire, got %+v", sig)
	}
	if !sig.HasSemanticContainer {
		t.Error("structural markers should still be measured on paywalled content")
	}
}

func TestClassify_PaywallPromptOverridesLength(t *testing.T) {
	c := New(nil)
	// Long page whose text includes a paywall wording only in the broad list.
	body := []byte(strings.Replace(
		articleHTML(1500, true),
		"</article>",
		"<p>Unlock this article today.</p></article>", 1,
	))

	sig := c.Classify(body, "text/html", models.Baseline{})

	if sig.Verdict {
		t.Fatal("paywall prompt must force verdict=false regardless of length")
	}
	if sig.Score != models.ScorePaywalled {
		t.Errorf("expected score PAYWALLED, got %s", sig.Score)
	}
	if sig.SubscriptionPromptHit {
		t.Error("narrow subscription gate should not fire for this wording")
	}
}

func TestClassify_WordCountThreshold(t *testing.T) {
	c := New(nil)
	// Exactly at the threshold is not enough: the contract is strictly
	// greater than 1000 words.
	for _, tc := range []struct {
		words   int
		verdict bool
	}{
		{900, false},
		{1001, true},
		{2000, true},
	} {
		body := []byte(articleHTML(tc.words, true))
		sig := c.Classify(body, "text/html", models.Baseline{})
		if sig.Verdict != tc.verdict {
			t.Errorf("words=%d (measured %d): verdict=%v, want %v",
				tc.words, sig.WordCount, sig.Verdict, tc.verdict)
		}
	}
}

func TestClassify_BaselineFloor(t *testing.T) {
	c := New(nil)
	body := []byte(articleHTML(1500, true))

	// Baseline larger than half the candidate: candidate is not more
	// than twice the teaser, so the verdict must fail.
	big := models.Baseline{Words: 1400, Bytes: len(body)}
	sig := c.Classify(body, "text/html", big)
	if sig.Verdict {
		t.Fatal("candidate not exceeding 2x baseline must fail")
	}
	if sig.Score != models.ScoreLow {
		t.Errorf("expected score LOW, got %s", sig.Score)
	}

	// Unknown baseline does not gate.
	sig = c.Classify(body, "text/html", models.Baseline{})
	if !sig.Verdict {
		t.Fatal("unknown baseline must not gate the verdict")
	}
}

func TestClassify_StructuralFallbackWithoutContainer(t *testing.T) {
	c := New(nil)
	// No <article>/<main>, but >=12 paragraphs and >=3 headings.
	body := []byte(articleHTML(1500, false))
	sig := c.Classify(body, "text/html", models.Baseline{})
	if sig.HasSemanticContainer {
		t.Fatal("fixture should have no semantic container")
	}
	if sig.ParagraphCount < 12 || sig.HeadingCount < 3 {
		t.Fatalf("fixture too small: %d paragraphs, %d headings",
			sig.ParagraphCount, sig.HeadingCount)
	}
	if !sig.Verdict {
		t.Error("structural fallback should pass with enough paragraphs and headings")
	}
}

func TestClassify_PlainTextIsNotMarkupShaped(t *testing.T) {
	c := New(nil)
	body := []byte(sentence(1500))
	sig := c.Classify(body, "text/plain", models.Baseline{})
	if sig.Markup {
		t.Error("plain text must not be markup-shaped")
	}
	if sig.Verdict {
		t.Error("plain text without structure must not pass")
	}
}

func TestClassify_MalformedInputDegrades(t *testing.T) {
	c := New(nil)
	inputs := [][]byte{
		nil,
		{},
		[]byte("<<<<><><"),
		{0xff, 0xfe, 0x00, 0x01},
		[]byte("<div"),
	}
	for _, in := range inputs {
		sig := c.Classify(in, "text/html", models.Baseline{})
		if sig.Verdict {
			t.Errorf("malformed input %q must classify false", in)
		}
	}
}

func TestClassify_TextDensityFormula(t *testing.T) {
	for _, tc := range []struct {
		words, bytes int
		want         float64
	}{
		{100, 600, 0.5},   // denominator floored at 200
		{300, 6000, 0.3},  // 300 / 1000
		{5000, 6000, 1.0}, // capped at 1
		{0, 100000, 0.0},  // no words
	} {
		got := textDensity(tc.words, tc.bytes)
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("textDensity(%d, %d) = %f, want %f", tc.words, tc.bytes, got, tc.want)
		}
	}
}

func TestClassify_ScriptAndStyleStripped(t *testing.T) {
	c := New(nil)
	body := []byte(`<html><body><article><script>var reservedForSubscribers = 1;</script>` +
		`<style>.x{}</style><p>` + sentence(50) + `</p></article></body></html>`)
	sig := c.Classify(body, "text/html", models.Baseline{})
	if sig.LexicalHit {
		t.Error("script content must not feed the lexical gates")
	}
	if sig.WordCount != 50 {
		t.Errorf("expected 50 visible words, got %d", sig.WordCount)
	}
}

func TestLexicon_Injectable(t *testing.T) {
	lex := NewLexicon([]string{"premium locked"}, nil)
	c := New(lex)
	body := []byte(strings.Replace(
		articleHTML(1500, true),
		"</article>",
		"<p>premium locked</p></article>", 1,
	))
	sig := c.Classify(body, "text/html", models.Baseline{})
	if !sig.PaywallPromptHit {
		t.Error("custom paywall term should fire")
	}
	if sig.SubscriptionPromptHit {
		t.Error("empty subscription list should never fire")
	}

	// The default wording is unknown to the custom lexicon.
	body = []byte(strings.Replace(
		articleHTML(1500, true),
		"</article>",
		"<p>reserved for subscribers</p></article>", 1,
	))
	sig = c.Classify(body, "text/html", models.Baseline{})
	if sig.LexicalHit {
		t.Error("custom lexicon should not know the default terms")
	}
}

func TestLexicon_BlankTermsNeverMatch(t *testing.T) {
	// A term list of nothing but whitespace, e.g. a mis-set
	// LEAKGATE_PAYWALL_TERMS=" , ", must not gate every page.
	lex := NewLexicon([]string{" ", "", "\t"}, []string{"  "})
	c := New(lex)

	sig := c.Classify([]byte(articleHTML(1500, true)), "text/html", models.Baseline{})
	if sig.LexicalHit {
		t.Error("blank terms should never fire a lexical gate")
	}
	if !sig.Verdict {
		t.Error("full article should classify positively with blank term lists")
	}
}
