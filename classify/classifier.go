package classify

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/leakgate/models"
)

// Threshold constants. These are part of the public contract: they are
// the boundary between "reported" and "ignored", and the tests pin them.
const (
	// minWordCount is the minimum plain-text word count for a full article.
	minWordCount = 1000

	// minTextDensity is the minimum length-normalized density.
	minTextDensity = 0.3

	// minParagraphs and minHeadings form the structural fallback when no
	// semantic container is present.
	minParagraphs = 12
	minHeadings   = 3

	// densityFloorWords floors the density denominator so short content
	// cannot blow the ratio up.
	densityFloorWords = 200

	// baselineFactor: content must be more than this many times the
	// teaser baseline byte length (when the baseline is known).
	baselineFactor = 2
)

// Structural matchers are compiled once; the classifier runs on every
// candidate every channel produces.
var (
	// semanticContainerMatcher matches elements that mark real article bodies.
	semanticContainerMatcher = cascadia.MustCompile("article, main, [role=main], [itemprop=articleBody]")

	paragraphMatcher = cascadia.MustCompile("p")
	headingMatcher   = cascadia.MustCompile("h1, h2, h3, h4, h5, h6")
)

// Classifier turns raw retrieved content into a Signal and a verdict.
// It is pure: no I/O, no state beyond the injected lexicon, identical
// inputs always produce identical Signals.
type Classifier struct {
	lex *Lexicon
}

// New creates a Classifier with the given lexicon.
// A nil lexicon falls back to the built-in default.
func New(lex *Lexicon) *Classifier {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &Classifier{lex: lex}
}

// Classify scores raw content against the structural and lexical rules.
//
// Verdict is true iff all of:
//   - the content is markup-shaped
//   - neither lexical gate fired
//   - word count > 1000
//   - text density > 0.3
//   - byte length > 2x the teaser baseline (when the baseline is known)
//   - a semantic container is present, or >= 12 paragraphs and >= 3 headings
//
// Either lexical gate firing forces verdict=false regardless of the
// structural evidence: a long paywall notice page would otherwise
// false-positive on length alone.
//
// Malformed input never raises; it degrades to verdict=false, since
// unparseable content is definitionally not article-like.
func (c *Classifier) Classify(body []byte, contentType string, baseline models.Baseline) models.Signal {
	sig := models.Signal{
		ByteLength: len(body),
		Score:      models.ScoreLow,
	}
	if len(body) == 0 {
		return sig
	}

	plain, tagCount := stripMarkup(body)
	sig.WordCount = len(strings.Fields(plain))
	sig.Markup = tagCount > 0 || isMarkupContentType(contentType)

	// Structural counts parse the markup leniently; a parse failure just
	// leaves the counts at zero.
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		sig.ParagraphCount = doc.FindMatcher(paragraphMatcher).Length()
		sig.HeadingCount = doc.FindMatcher(headingMatcher).Length()
		sig.HasSemanticContainer = doc.FindMatcher(semanticContainerMatcher).Length() > 0
	}

	sig.TextDensity = textDensity(sig.WordCount, sig.ByteLength)

	lower := strings.ToLower(plain)
	sig.PaywallPromptHit = c.lex.PaywallHit(lower)
	sig.SubscriptionPromptHit = c.lex.SubscriptionHit(lower)
	sig.LexicalHit = sig.PaywallPromptHit || sig.SubscriptionPromptHit

	if sig.LexicalHit {
		sig.Verdict = false
		sig.Score = models.ScorePaywalled
		return sig
	}

	sig.Verdict = sig.Markup &&
		sig.WordCount > minWordCount &&
		sig.TextDensity > minTextDensity &&
		exceedsBaseline(sig.ByteLength, baseline) &&
		(sig.HasSemanticContainer ||
			(sig.ParagraphCount >= minParagraphs && sig.HeadingCount >= minHeadings))

	if sig.Verdict {
		sig.Score = models.ScoreHigh
	}
	return sig
}

// textDensity is min(1, words / max(200, bytes/6)): a length-normalized
// signal that caps at 1 and floors the denominator to avoid
// divide-by-near-zero blowups on short content.
func textDensity(words, bytes int) float64 {
	denom := float64(bytes) / 6
	if denom < densityFloorWords {
		denom = densityFloorWords
	}
	d := float64(words) / denom
	if d > 1 {
		return 1
	}
	return d
}

// exceedsBaseline applies the teaser comparison floor. An unknown
// baseline does not gate the verdict.
func exceedsBaseline(byteLength int, baseline models.Baseline) bool {
	if !baseline.Known() {
		return true
	}
	return byteLength > baselineFactor*baseline.Bytes
}

// PlainText strips markup from content and returns the visible text,
// using the same tokenization the classifier scores with.
func PlainText(body []byte) string {
	plain, _ := stripMarkup(body)
	return plain
}

// isMarkupContentType reports whether the declared content type is HTML/XML.
func isMarkupContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml+xml") ||
		strings.Contains(ct, "application/xml") ||
		strings.Contains(ct, "text/xml")
}

// stripMarkup tokenizes the content, drops script/style/noscript blocks
// and all tags, and returns the visible plain text plus the number of
// element start tags seen. Tokenization never fails: garbage bytes come
// back as text.
func stripMarkup(body []byte) (string, int) {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var buf strings.Builder
	tagCount := 0
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(buf.String()), tagCount
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			tagCount++
			if tt == html.StartTagToken {
				switch string(tn) {
				case "script", "style", "noscript":
					skipDepth++
				}
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if skipDepth == 0 {
				text := strings.TrimSpace(string(tokenizer.Text()))
				if text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
