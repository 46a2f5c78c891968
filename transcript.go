package transcript

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Transcript represents the structured data extracted from an academic transcript
type Transcript struct {
	// Zwischennote (GPA) - nil when the transcript carries no GPA marker
	GPA *float64 `json:"gpa"`

	// Gesamtcredits / Total Credits - nil when no credits marker is present
	TotalCredits *int `json:"total_credits"`

	// Graded modules in the order they appear in the document
	Courses []Course `json:"courses"`

	// Raw text extracted from PDF
	RawText string `json:"-"`
}

// Course represents a graded module
type Course struct {
	ModuleID string `json:"module_id"`
	Grade    string `json:"grade"`
}

// MarshalJSON writes the GPA with at least one decimal place, so a whole
// grade encodes as 2.0 rather than 2
func (t Transcript) MarshalJSON() ([]byte, error) {
	type plain Transcript

	gpa := json.RawMessage("null")
	if t.GPA != nil {
		gpa = json.RawMessage(formatGPA(*t.GPA))
	}

	return json.Marshal(struct {
		GPA json.RawMessage `json:"gpa"`
		plain
	}{GPA: gpa, plain: plain(t)})
}

func formatGPA(gpa float64) string {
	s := strconv.FormatFloat(gpa, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
