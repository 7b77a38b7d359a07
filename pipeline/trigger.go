package pipeline

import "strings"

// DefaultKeywords are the trigger words: "circle" in two Arabic spellings and
// in English.
var DefaultKeywords = []string{"!دائرة", "!دائره", "!circle"}

// Matches reports whether text contains any keyword. Matching is
// case-sensitive substring containment.
func Matches(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Triggered reports whether msg's body or caption contains a keyword.
func (p *Pipeline) Triggered(msg Message) bool {
	return Matches(msg.Body(), p.keywords) || Matches(msg.Caption(), p.keywords)
}
