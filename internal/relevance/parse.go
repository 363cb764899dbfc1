package relevance

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseVerdict decodes the model's response defensively: try the raw text,
// then strip markdown code fences, then fall back to the first balanced JSON
// object. Models in JSON mode still occasionally wrap or preface the object.
func parseVerdict(text string) (*Verdict, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, eris.New("relevance: empty model response")
	}

	candidates := []string{text}
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if obj := firstJSONObject(text); obj != "" {
		candidates = append(candidates, obj)
	}

	var lastErr error
	for _, c := range candidates {
		var v Verdict
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			lastErr = err
			continue
		}
		return &v, nil
	}
	return nil, eris.Wrap(lastErr, "relevance: parse model response")
}

// firstJSONObject returns the first balanced {...} span in s, respecting
// string literals and escapes, or "" when none exists.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
