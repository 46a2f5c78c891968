package transcript

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultLookahead is the number of lines searched for a grade after a module id
const DefaultLookahead = 15

// Grades run from 1.0 (best) to 5.0 (worst)
const (
	minGrade = 1.0
	maxGrade = 5.0
)

var (
	// Module ids such as "CS1001", "INF123456" or "MATH20001_A"
	moduleIDRe = regexp.MustCompile(`[A-Z]{2,4}\d{4,7}(?:_[A-Z])?`)

	// Title followed by the "BE" (bestanden) marker, e.g. "Praxis Projekt BE".
	// Such modules pass without a grade.
	ungradedRe = regexp.MustCompile(`[A-Za-z]+\s+[&A-Za-z]+\s+BE`)

	commaDecimalRe = regexp.MustCompile(`\d+,\d`)
)

type scanState int

const (
	seekingID scanState = iota
	seekingGrade
)

// ScanReport holds the courses found by a scan together with the ids and
// candidates that were dropped on the way
type ScanReport struct {
	Courses []Course

	// Ids closed by an ungraded-entry marker
	Ungraded []string

	// Ids whose lookahead window held neither a grade nor a marker
	Abandoned []string

	// Comma-decimal candidates that did not parse or fell outside [1.0, 5.0]
	Rejected []string
}

// ModuleScanner pairs module ids with the grade that follows them within a
// bounded number of lines
type ModuleScanner struct {
	lookahead int
}

// NewModuleScanner creates a scanner with the given window size.
// Non-positive sizes fall back to DefaultLookahead.
func NewModuleScanner(lookahead int) *ModuleScanner {
	if lookahead < 1 {
		lookahead = DefaultLookahead
	}
	return &ModuleScanner{lookahead: lookahead}
}

// Lookahead returns the window size
func (s *ModuleScanner) Lookahead() int {
	return s.lookahead
}

// Scan walks the lines once. While seeking an id every line is inspected for a
// module id; once one is captured the next lines are inspected, at most
// lookahead of them, until an ungraded marker or a valid grade closes the
// module. A line that closes a module is consumed and never revisited.
//
// When the window runs out the id is abandoned and scanning resumes on the line
// right after the id, so lines inside the failed window get a second look as
// potential id lines.
func (s *ModuleScanner) Scan(lines []string) ScanReport {
	report := ScanReport{Courses: make([]Course, 0)}

	state := seekingID
	cursor := 0
	var (
		moduleID  string
		lookAt    int
		remaining int
	)

	for cursor < len(lines) {
		switch state {
		case seekingID:
			moduleID = moduleIDRe.FindString(lines[cursor])
			cursor++
			if moduleID != "" {
				state = seekingGrade
				lookAt = cursor
				remaining = s.lookahead
			}

		case seekingGrade:
			if remaining == 0 || lookAt >= len(lines) {
				report.Abandoned = append(report.Abandoned, moduleID)
				state = seekingID
				continue
			}

			line := lines[lookAt]
			if ungradedRe.MatchString(line) {
				report.Ungraded = append(report.Ungraded, moduleID)
				cursor = lookAt + 1
				state = seekingID
				continue
			}

			if candidate := commaDecimalRe.FindString(line); candidate != "" {
				if grade, ok := parseGrade(candidate); ok {
					report.Courses = append(report.Courses, Course{
						ModuleID: moduleID,
						Grade:    formatGrade(grade),
					})
					cursor = lookAt + 1
					state = seekingID
					continue
				}
				report.Rejected = append(report.Rejected, candidate)
			}

			lookAt++
			remaining--
		}
	}

	// An id on the very last line has an empty window
	if state == seekingGrade {
		report.Abandoned = append(report.Abandoned, moduleID)
	}

	return report
}

// parseCommaDecimal parses a German decimal such as "2,3"
func parseCommaDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

// parseGrade parses a grade candidate and checks it against the grading scale
func parseGrade(candidate string) (float64, bool) {
	grade, err := parseCommaDecimal(candidate)
	if err != nil {
		return 0, false
	}
	if grade < minGrade || grade > maxGrade {
		return 0, false
	}
	return grade, true
}

func formatGrade(grade float64) string {
	return strconv.FormatFloat(grade, 'f', 1, 64)
}
