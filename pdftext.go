package transcript

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
	textunicode "golang.org/x/text/encoding/unicode"
)

var (
	// ErrNoText is returned when none of the extractors finds any text in a PDF
	ErrNoText = errors.New("no text found in PDF")

	// ErrUnknownExtractor is returned by NewExtractor for unsupported names
	ErrUnknownExtractor = errors.New("unknown text extractor")
)

// Extractor names accepted by NewExtractor
const (
	ExtractorAuto    = "auto"
	ExtractorPlain   = "plain"
	ExtractorContent = "content"
)

// TextExtractor turns PDF bytes into page text. Pages are joined with newlines.
type TextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// NewExtractor returns the extractor registered under name
func NewExtractor(name string) (TextExtractor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ExtractorAuto:
		return DefaultExtractor(), nil
	case ExtractorPlain:
		return PlainTextExtractor{}, nil
	case ExtractorContent:
		return ContentStreamExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtractor, name)
	}
}

// DefaultExtractor tries the text layer reader first and falls back to raw
// content stream decoding
func DefaultExtractor() TextExtractor {
	return ChainExtractor{PlainTextExtractor{}, ContentStreamExtractor{}}
}

// ChainExtractor tries each extractor in order and returns the first non-empty text
type ChainExtractor []TextExtractor

// ExtractText implements TextExtractor
func (c ChainExtractor) ExtractText(data []byte) (string, error) {
	var errs []error
	for _, extractor := range c {
		text, err := extractor.ExtractText(data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	if len(errs) > 0 && len(errs) == len(c) {
		return "", errors.Join(errs...)
	}
	return "", ErrNoText
}

// PlainTextExtractor reads the embedded text layer page by page
type PlainTextExtractor struct{}

// ExtractText implements TextExtractor
func (PlainTextExtractor) ExtractText(data []byte) (text string, err error) {
	// The reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	fonts := make(map[string]*pdf.Font)
	var result strings.Builder
	for pageNr := 1; pageNr <= reader.NumPage(); pageNr++ {
		page := reader.Page(pageNr)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}

		pageText, pageErr := page.GetPlainText(fonts)
		if pageErr != nil {
			return "", fmt.Errorf("failed to read page %d: %w", pageNr, pageErr)
		}
		result.WriteString(pageText)
		result.WriteString("\n")
	}

	return result.String(), nil
}

// ContentStreamExtractor decodes the text showing operators of every page
// content stream. It is slower and less accurate than the text layer reader
// but copes with PDFs whose fonts the reader cannot map.
type ContentStreamExtractor struct{}

// ExtractText implements TextExtractor
func (ContentStreamExtractor) ExtractText(data []byte) (string, error) {
	conf := model.NewDefaultConfiguration()

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return "", fmt.Errorf("failed to read and validate PDF: %w", err)
	}

	var rawText strings.Builder
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		contentReader, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || contentReader == nil {
			continue
		}

		contentBytes, err := io.ReadAll(contentReader)
		if err != nil {
			continue
		}

		rawText.WriteString(extractTextFromPDFContent(string(contentBytes)))
		rawText.WriteString("\n")
	}

	return rawText.String(), nil
}

// extractTextFromPDFContent walks a content stream and collects the operands of
// the text showing operators in stream order. Operators that move to a new
// text line start a new output line. Inside TJ arrays a large negative kerning
// value is read as a word gap.
func extractTextFromPDFContent(content string) string {
	var lines []string
	var line strings.Builder
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	inArray := false
	i := 0
	for i < len(content) {
		ch := content[i]
		switch {
		case ch == '(':
			str, end := extractPDFString(content, i)
			line.WriteString(decodePDFString(str))
			if end <= i {
				end = i + 1
			}
			i = end

		case ch == '<' && i+1 < len(content) && content[i+1] == '<':
			i += 2

		case ch == '<':
			end := strings.IndexByte(content[i:], '>')
			if end < 0 {
				i = len(content)
				continue
			}
			line.WriteString(decodeHexString(content[i+1 : i+end]))
			i += end + 1

		case ch == '[':
			inArray = true
			i++

		case ch == ']':
			inArray = false
			i++

		case ch == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}

		case isPDFDelimiter(ch) || isPDFWhitespace(ch):
			i++

		default:
			start := i
			for i < len(content) && !isPDFDelimiter(content[i]) && !isPDFWhitespace(content[i]) {
				i++
			}
			token := content[start:i]
			if inArray {
				if kern, err := strconv.ParseFloat(token, 64); err == nil && kern <= -200 {
					line.WriteByte(' ')
				}
				continue
			}
			switch token {
			case "Td", "TD", "T*", "Tm", "'", "\"", "ET":
				flush()
			}
		}
	}
	flush()

	return strings.Join(lines, "\n")
}

func isPDFWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(ch byte) bool {
	switch ch {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// extractPDFString returns the body of the literal string opening at start,
// escapes left in place, and the index just past its closing paren. Balanced
// inner parens are part of the body.
func extractPDFString(content string, start int) (string, int) {
	if start >= len(content) || content[start] != '(' {
		return "", start
	}

	depth := 1
	for i := start + 1; i < len(content); i++ {
		switch content[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return content[start+1 : i], i + 1
			}
		}
	}
	return content[start+1:], len(content)
}

// decodePDFString resolves escape sequences in a PDF literal string and
// converts the resulting bytes to UTF-8
func decodePDFString(s string) string {
	var result bytes.Buffer
	i := 0
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				result.WriteByte('\n')
			case 'r':
				result.WriteByte('\r')
			case 't':
				result.WriteByte('\t')
			case 'b':
				result.WriteByte('\b')
			case 'f':
				result.WriteByte('\f')
			case '(', ')', '\\':
				result.WriteByte(s[i+1])
			case '\n':
				// Line continuation
			default:
				if s[i+1] >= '0' && s[i+1] <= '7' {
					j := i + 1
					for j < len(s) && j < i+4 && s[j] >= '0' && s[j] <= '7' {
						j++
					}
					if val, err := strconv.ParseUint(s[i+1:j], 8, 8); err == nil {
						result.WriteByte(byte(val))
					}
					i = j
					continue
				}
				result.WriteByte(s[i+1])
			}
			i += 2
			continue
		}
		result.WriteByte(s[i])
		i++
	}

	return decodeTextBytes(result.Bytes())
}

// decodeHexString decodes the body of a <...> hex string
func decodeHexString(hex string) string {
	hex = strings.Map(func(r rune) rune {
		if isPDFWhitespace(byte(r)) {
			return -1
		}
		return r
	}, hex)

	// An odd trailing digit is padded with 0
	if len(hex)%2 != 0 {
		hex += "0"
	}

	byteData := make([]byte, 0, len(hex)/2)
	for i := 0; i+1 < len(hex); i += 2 {
		val, err := strconv.ParseUint(hex[i:i+2], 16, 8)
		if err != nil {
			continue
		}
		byteData = append(byteData, byte(val))
	}

	return decodeTextBytes(byteData)
}

// decodeTextBytes converts string bytes to UTF-8. UTF-16BE is recognized by
// its byte order mark or by mostly-zero high bytes; anything else that is not
// valid UTF-8 is read as Windows-1252, the usual encoding of German PDFs.
func decodeTextBytes(data []byte) string {
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return decodeUTF16BE(data[2:])
	}
	if len(data) >= 4 && isLikelyUTF16BE(data) {
		return decodeUTF16BE(data)
	}

	printable := make([]byte, 0, len(data))
	for _, b := range data {
		if b >= 32 || b == '\t' {
			printable = append(printable, b)
		}
	}

	if utf8.Valid(printable) {
		return string(printable)
	}
	if converted, err := convertWindows1252ToUTF8(printable); err == nil {
		return converted
	}
	return string(printable)
}

// convertWindows1252ToUTF8 converts Windows-1252 encoded bytes to UTF-8
func convertWindows1252ToUTF8(data []byte) (string, error) {
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// isLikelyUTF16BE reports whether at least three quarters of the high bytes
// are zero, as they are for Latin text
func isLikelyUTF16BE(data []byte) bool {
	if len(data) < 4 || len(data)%2 != 0 {
		return false
	}

	units := len(data) / 2
	zeroHigh := 0
	for i := 0; i < units; i++ {
		if data[2*i] == 0 {
			zeroHigh++
		}
	}
	return 4*zeroHigh >= 3*units
}

// decodeUTF16BE decodes big-endian UTF-16 without a byte order mark. A dangling
// odd byte is dropped.
func decodeUTF16BE(data []byte) string {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}

	decoded, err := textunicode.UTF16(textunicode.BigEndian, textunicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return strings.Map(dropControl, string(decoded))
}

func dropControl(r rune) rune {
	if r < 32 && r != '\t' {
		return -1
	}
	return r
}
