package transcript

import (
	"regexp"
	"strconv"
)

var (
	totalCreditsRe = regexp.MustCompile(`(?i)(?:Gesamtcredits|Total Credits)\s*(\d+)`)

	// The GPA value may sit several lines below its label
	gpaRe = regexp.MustCompile(`(?i)Zwischennote\s*[\s\S]*?(\d+,\d)`)
)

// extractTotalCredits returns the first credits total in the text, or nil
func extractTotalCredits(text string) *int {
	matches := totalCreditsRe.FindStringSubmatch(text)
	if len(matches) < 2 {
		return nil
	}
	credits, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil
	}
	return &credits
}

// extractGPA returns the first comma-decimal following the "Zwischennote" label, or nil
func extractGPA(text string) *float64 {
	matches := gpaRe.FindStringSubmatch(text)
	if len(matches) < 2 {
		return nil
	}
	gpa, err := parseCommaDecimal(matches[1])
	if err != nil {
		return nil
	}
	return &gpa
}
