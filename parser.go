package transcript

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Parser is responsible for parsing transcript PDFs and their extracted text.
// A configured Parser is safe for concurrent use.
type Parser struct {
	debug     bool
	logger    *log.Logger
	extractor TextExtractor
	scanner   *ModuleScanner
}

// NewParser creates a new Parser instance
func NewParser() *Parser {
	return &Parser{
		debug:     false,
		logger:    log.Default(),
		extractor: DefaultExtractor(),
		scanner:   NewModuleScanner(DefaultLookahead),
	}
}

// SetDebug enables or disables debug mode. In debug mode the extracted text
// and the scan outcome are logged.
func (p *Parser) SetDebug(debug bool) {
	p.debug = debug
}

// SetLogger replaces the logger used for debug output and warnings
func (p *Parser) SetLogger(logger *log.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// SetExtractor replaces the PDF text extractor
func (p *Parser) SetExtractor(extractor TextExtractor) {
	if extractor != nil {
		p.extractor = extractor
	}
}

// SetLookahead sets how many lines after a module id are searched for its
// grade. Non-positive values are ignored.
func (p *Parser) SetLookahead(lines int) {
	if lines > 0 {
		p.scanner = NewModuleScanner(lines)
	}
}

// ParseFile parses a transcript PDF file and returns structured data
func (p *Parser) ParseFile(filepath string) (*Transcript, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			p.logger.Warn("could not close file", "path", filepath, "err", err)
		}
	}(file)

	return p.Parse(file)
}

// Parse parses a transcript PDF from a reader and returns structured data
func (p *Parser) Parse(reader io.Reader) (*Transcript, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF data: %w", err)
	}
	return p.ParseBytes(data)
}

// ParseBytes extracts the page text of a PDF and parses it
func (p *Parser) ParseBytes(data []byte) (*Transcript, error) {
	text, err := p.extractor.ExtractText(data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from PDF: %w", err)
	}
	return p.ParseText(text), nil
}

// ParseText parses already extracted transcript text. It never fails: fields
// whose markers are missing stay nil and Courses is empty.
func (p *Parser) ParseText(text string) *Transcript {
	normalized := NormalizeWhitespace(text)
	lines := splitLines(normalized)

	report := p.scanner.Scan(lines)

	if p.debug {
		p.logger.Info("extracted text", "lines", len(lines), "text", normalized)
		p.logger.Info("scan finished",
			"courses", len(report.Courses),
			"ungraded", report.Ungraded,
			"abandoned", report.Abandoned,
			"rejected", report.Rejected,
		)
	}

	return assemble(report, normalized, text)
}

// assemble merges the scan outcome and the summary fields into one record
func assemble(report ScanReport, normalized, raw string) *Transcript {
	courses := report.Courses
	if courses == nil {
		courses = make([]Course, 0)
	}
	return &Transcript{
		GPA:          extractGPA(normalized),
		TotalCredits: extractTotalCredits(normalized),
		Courses:      courses,
		RawText:      raw,
	}
}
