package models

// RawCandidate is one piece of retrieved content produced by a probe
// channel, before classification. Candidates are transient: they are
// discarded after classification unless the verdict is positive, in
// which case the bytes flow into the artifact store.
type RawCandidate struct {
	// Body is the raw retrieved content.
	Body []byte

	// ContentType is the declared (or inferred) MIME type of Body.
	ContentType string

	// SourceURL is the URL the content was retrieved from. For DOM and
	// hydration candidates this is the target page itself.
	SourceURL string

	// Method is the HTTP method used, or "EVAL" for in-page extraction.
	Method string

	// Channel is the name of the probe channel that produced the candidate.
	Channel string

	// Note carries channel-specific context for evidence (matched
	// selector, hydration key path, UA/referer pair, snapshot URL).
	Note string
}
