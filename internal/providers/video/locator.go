package video

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ParseLocator collapses the provider's output field into the first result
// locator. The field arrives as a bare string, an array of strings, or an
// array of objects carrying a url-like key; a single object is tolerated too.
func ParseLocator(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return ""
		}
		for _, item := range items {
			if loc := ParseLocator(item); loc != "" {
				return loc
			}
		}
		return ""
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return ""
		}
		for _, key := range locatorKeys {
			if v, ok := obj[key]; ok {
				var s string
				if err := json.Unmarshal(v, &s); err == nil && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
		return ""
	default:
		return ""
	}
}

var locatorKeys = []string{"url", "uri", "href", "videoUrl", "video_url"}
