package probe

import (
	"regexp"

	"github.com/use-agent/leakgate/jsontree"
)

// articleBodyKey matches the key names CMS APIs and hydration payloads
// commonly store the full article text under.
var articleBodyKey = regexp.MustCompile(
	`(?i)^(articlebody|article_body|body|bodytext|body_text|content|contenthtml|content_html|fulltext|full_text|text)$`)

// recoverArticleText parses a JSON payload and walks it for an
// article-body-shaped field within the default depth bound. It returns
// the recovered text, or ok=false when the payload does not parse, no
// key matches, or the matched value carries no text.
func recoverArticleText(data []byte) (string, bool) {
	v, err := jsontree.Parse(data)
	if err != nil {
		return "", false
	}
	match, found := jsontree.Find(v, articleBodyKey, jsontree.DefaultMaxDepth)
	if !found {
		return "", false
	}
	text := match.Text()
	if text == "" {
		return "", false
	}
	return text, true
}
