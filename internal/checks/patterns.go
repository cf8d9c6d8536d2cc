package checks

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	phonePattern = regexp.MustCompile(`\b\d{3}-\d{4}\b|\b\d{3}-\d{3}-\d{4}\b`)

	// Garbled text: a run of unexpected symbols, leading or trailing
	// non-word characters, or two lone letters next to each other.
	poorQualityPattern = regexp.MustCompile(`[^A-Za-z0-9\s.,!?'"-]{3,}|^\W+|\W+$|\b[A-Za-z]\s+[A-Za-z]\b`)
)

// SensitiveMarkers make a message irrelevant for support training data
// regardless of what the model says.
var SensitiveMarkers = []string{"ssn", "social security", "phone number", "email"}

var IrrelevantMarkers = []string{"random", "no purpose", "unrelated", "placeholder"}

func DetectEmail(text string) bool {
	return emailPattern.MatchString(text)
}

func DetectSSN(text string) bool {
	return ssnPattern.MatchString(text)
}

func DetectPhone(text string) bool {
	return phonePattern.MatchString(text)
}

// DetectLanguageQuality reports poor language quality. Missing text is never
// flagged.
func DetectLanguageQuality(text *string) bool {
	if text == nil {
		return false
	}
	return poorQualityPattern.MatchString(*text)
}

// ContainsAny reports whether text contains any marker, ignoring case.
func ContainsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
