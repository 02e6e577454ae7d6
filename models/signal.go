package models

// Score is the ordinal validation outcome of classification.
type Score string

const (
	// ScoreHigh means the content passed every gate and is very likely a
	// complete article body.
	ScoreHigh Score = "HIGH"

	// ScorePaywalled means a paywall or subscription prompt matched the
	// derived plain text; structural evidence is overridden.
	ScorePaywalled Score = "PAYWALLED"

	// ScoreLow means the content failed a structural or length gate
	// without any paywall prompt firing.
	ScoreLow Score = "LOW"
)

// Signal is the full structural/lexical measurement computed by the
// article-likeness classifier. It is a pure derived value: never mutated
// after creation, safe to snapshot into finding evidence.
type Signal struct {
	// ByteLength is len(body) of the classified content.
	ByteLength int `json:"byte_length"`

	// WordCount is the whitespace-token count of the derived plain text.
	WordCount int `json:"word_count"`

	// ParagraphCount counts paragraph-like structural markers.
	ParagraphCount int `json:"paragraph_count"`

	// HeadingCount counts heading-like structural markers (h1-h6).
	HeadingCount int `json:"heading_count"`

	// HasSemanticContainer is true when an article/main container or an
	// articleBody itemprop is present.
	HasSemanticContainer bool `json:"has_semantic_container"`

	// TextDensity is min(1, words / max(200, bytes/6)).
	TextDensity float64 `json:"text_density"`

	// Markup is true when the content is HTML-shaped (tags were found or
	// the content type declared markup).
	Markup bool `json:"markup"`

	// LexicalHit is true when any configured article-negative pattern
	// matched the plain text (union of the two gates below).
	LexicalHit bool `json:"lexical_hit"`

	// PaywallPromptHit is true when the broad paywall-prompt pattern matched.
	PaywallPromptHit bool `json:"paywall_prompt_hit"`

	// SubscriptionPromptHit is true when the narrower subscription-prompt
	// pattern matched.
	SubscriptionPromptHit bool `json:"subscription_prompt_hit"`

	// Verdict is the boolean article-likeness decision.
	Verdict bool `json:"verdict"`

	// Score summarizes the verdict and the reason for a negative one.
	Score Score `json:"score"`
}
