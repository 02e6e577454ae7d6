package classify

import (
	"regexp"
	"strings"
)

// Lexicon carries the lexical gates evaluated against the derived plain
// text of a candidate. The lists are injectable so locale- or
// market-specific wordings can be swapped without touching the scorer.
type Lexicon struct {
	paywall      *regexp.Regexp
	subscription *regexp.Regexp
}

// defaultPaywallTerms is the broad paywall-prompt list: any wording that
// tells the reader the rest of the article is gated.
var defaultPaywallTerms = []string{
	"subscribe to continue",
	"subscribe to read",
	"subscription required",
	"to continue reading",
	"continue reading this article",
	"reserved for subscribers",
	"for subscribers only",
	"already a subscriber",
	"sign in to read",
	"log in to continue",
	"register to continue",
	"create a free account",
	"unlock this article",
	"this article is for members",
	// localized equivalents
	"réservé aux abonnés",
	"abonnez-vous",
	"déjà abonné",
	"suscríbete para seguir",
	"solo para suscriptores",
	"jetzt abonnieren",
	"nur für abonnenten",
	"riservato agli abbonati",
}

// defaultSubscriptionTerms is the narrower subscription-prompt subset:
// wordings that explicitly name a subscription as the gate.
var defaultSubscriptionTerms = []string{
	"subscribe to continue",
	"subscribe to read",
	"subscription required",
	"reserved for subscribers",
	"for subscribers only",
	"already a subscriber",
	"réservé aux abonnés",
	"déjà abonné",
	"solo para suscriptores",
	"nur für abonnenten",
	"riservato agli abbonati",
}

// NewLexicon compiles a Lexicon from literal term lists. Terms are
// matched case-insensitively as substrings of the plain text. Empty
// lists compile to a pattern that never matches.
func NewLexicon(paywallTerms, subscriptionTerms []string) *Lexicon {
	return &Lexicon{
		paywall:      compileTerms(paywallTerms),
		subscription: compileTerms(subscriptionTerms),
	}
}

// DefaultLexicon returns the built-in term lists.
func DefaultLexicon() *Lexicon {
	return NewLexicon(defaultPaywallTerms, defaultSubscriptionTerms)
}

// PaywallHit reports whether the broad paywall-prompt gate fires.
func (l *Lexicon) PaywallHit(plainText string) bool {
	return l.paywall.MatchString(plainText)
}

// SubscriptionHit reports whether the narrower subscription-prompt gate fires.
func (l *Lexicon) SubscriptionHit(plainText string) bool {
	return l.subscription.MatchString(plainText)
}

// compileTerms builds one case-insensitive alternation from literal terms.
// Blank terms are dropped; a list with nothing left compiles to a
// never-matching pattern, not an empty alternation that matches
// everything.
func compileTerms(terms []string) *regexp.Regexp {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(t)))
	}
	if len(quoted) == 0 {
		// A pattern that can never match any input.
		return regexp.MustCompile(`\A\z.`)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}
