package harness

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Salvage patterns, most specific first. Later layers are strictly more
// permissive and only run after earlier ones produce nothing usable.
var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	fencedAnyRe  = regexp.MustCompile("(?s)```\\s*(.*?)```")
	bareObjectRe = regexp.MustCompile(`\{[^{}]*"file_type"[^{}]*\}`)
)

// ExtractVerdict scans free text for a verdict the model produced without
// invoking the submission tool: first a json-labeled fence, then any
// fence, then a bare brace object carrying the file_type discriminator.
// The first candidate that parses to an object containing "file_type"
// wins. This is a recovery path, not the primary contract.
func ExtractVerdict(text string) (json.RawMessage, bool) {
	if text == "" {
		return nil, false
	}
	for _, re := range []*regexp.Regexp{fencedJSONRe, fencedAnyRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if verdict, ok := parseVerdict(m[1]); ok {
				return verdict, true
			}
		}
	}
	for _, m := range bareObjectRe.FindAllString(text, -1) {
		if verdict, ok := parseVerdict(m); ok {
			return verdict, true
		}
	}
	return nil, false
}

func parseVerdict(candidate string) (json.RawMessage, bool) {
	candidate = strings.TrimSpace(candidate)
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, false
	}
	if _, ok := obj["file_type"]; !ok {
		return nil, false
	}
	return json.RawMessage(candidate), true
}
