package utils

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	jsonBlockRegex = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	anyBlockRegex  = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// ExtractJSONObject pulls the first JSON object out of model output.
// It looks at ```json fences, then any fence, then the span between the first '{' and the last '}'.
// Returns "" when nothing parses.
func ExtractJSONObject(rawText string) string {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return ""
	}
	if isValidJSONObject(rawText) {
		return rawText
	}
	for _, re := range []*regexp.Regexp{jsonBlockRegex, anyBlockRegex} {
		if m := re.FindStringSubmatch(rawText); len(m) > 1 && isValidJSONObject(m[1]) {
			return strings.TrimSpace(m[1])
		}
	}
	first := strings.Index(rawText, "{")
	last := strings.LastIndex(rawText, "}")
	if first != -1 && last > first {
		candidate := rawText[first : last+1]
		if isValidJSONObject(candidate) {
			return candidate
		}
	}
	return ""
}

func isValidJSONObject(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}

// DecodeStrict decodes data into out, rejecting unknown fields.
func DecodeStrict(data []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// StringShort truncates s to maxLen bytes, adding an ellipsis when cut.
func StringShort(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
