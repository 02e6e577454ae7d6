package models

// NetCapture is the metadata of one network response observed during
// page navigation. Bodies are not stored inline: the interception
// channel re-fetches interesting URLs directly after navigation.
type NetCapture struct {
	URL         string   `json:"url"`
	Method      string   `json:"method"`
	Status      int      `json:"status"`
	ContentType string   `json:"content_type"`
	Size        int      `json:"size"`
	SHA256      string   `json:"sha256"`
	TopKeys     []string `json:"top_keys,omitempty"`
}
