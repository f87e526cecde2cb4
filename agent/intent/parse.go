package intent

import (
	"regexp"
	"strings"
)

var labelToken = regexp.MustCompile(`[A-Za-z]+`)

// Parse turns raw model output into a label. It accepts the label wrapped in
// code fences, quotes, a "label:" prefix or trailing punctuation; anything
// that is not exactly one known label becomes LowConfidence. The second
// return value reports whether the output was recognised.
func Parse(raw string) (Label, bool) {
	s := strings.TrimSpace(raw)
	if l, ok := Lookup(s); ok {
		return l, true
	}

	s = strings.Trim(s, "`\"'*. \n\t")
	s = strings.TrimPrefix(strings.TrimSpace(s), "json")
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.Trim(s, "`\"'*.{} \n\t")

	var found Label
	for _, tok := range labelToken.FindAllString(s, -1) {
		l, ok := Lookup(tok)
		if !ok {
			return LowConfidence, false
		}
		if found != "" && found != l {
			return LowConfidence, false
		}
		found = l
	}
	if found == "" {
		return LowConfidence, false
	}
	return found, true
}
