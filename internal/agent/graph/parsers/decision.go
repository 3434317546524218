package parsers

import (
	"regexp"
	"strings"
)

var decisionRegex = regexp.MustCompile(`(?i)DECISION:\s*([\w\-]+)\s*-\s*(.*)`)

// Decision is the parsed router output.
type Decision struct {
	Token  string
	Reason string
	// Matched is false when no DECISION line was found and the defaults apply.
	Matched bool
}

// ParseDecision finds the first "DECISION: <token> - <reason>" line.
// Without a match the token is "chat" and the reason is the raw text.
func ParseDecision(text string) Decision {
	if len(text) > maxContentLen {
		text = text[:maxContentLen]
	}
	m := decisionRegex.FindStringSubmatch(text)
	if m == nil {
		return Decision{Token: "chat", Reason: strings.TrimSpace(text)}
	}
	return Decision{
		Token:   strings.TrimSpace(m[1]),
		Reason:  strings.TrimSpace(m[2]),
		Matched: true,
	}
}
