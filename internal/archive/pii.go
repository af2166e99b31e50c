package archive

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?(?:\d{1,3}[\s.-]?)?\(?\d{2,3}\)?[\s.-]?\d{4,5}[\s.-]?\d{4}`)
)

// HashValue returns the hex-encoded SHA-256 hash of s.
func HashValue(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
// Names are kept so mappings can still be debugged.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// ScrubPayload scrubs every string inside a JSON document. Input that is not
// JSON is scrubbed as text and stored as a JSON string.
func ScrubPayload(raw []byte) json.RawMessage {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		out, _ := json.Marshal(ScrubPII(string(raw)))
		return out
	}
	out, err := json.Marshal(scrubValue(doc))
	if err != nil {
		out, _ = json.Marshal(ScrubPII(string(raw)))
	}
	return out
}

func scrubValue(v any) any {
	switch t := v.(type) {
	case string:
		return ScrubPII(t)
	case map[string]any:
		for k, inner := range t {
			t[k] = scrubValue(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = scrubValue(inner)
		}
		return t
	}
	return v
}
