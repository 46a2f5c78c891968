package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	// uploadField is the multipart form field carrying the PDF
	uploadField = "pdf"

	// multipartOverhead is the allowance for boundaries and part headers on
	// top of the PDF size limit
	multipartOverhead = 1 << 20

	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"

	noPDFMessage = "No PDF provided"
)

var (
	// ErrNoPDF indicates a request without a usable pdf part
	ErrNoPDF = errors.New("no pdf part in upload")

	// ErrUploadTooLarge indicates an upload above the configured limit
	ErrUploadTooLarge = errors.New("upload too large")
)

const uploadFormTemplate = `<!doctype html>
<html><body>
<h3>Upload a transcript PDF</h3>
<form method="POST" enctype="multipart/form-data" action="%s">
<input type="file" name="pdf" accept="application/pdf" />
<button type="submit">Upload</button>
</form>
</body></html>
`

// response is the transport-neutral outcome of a request
type response struct {
	status int
	header http.Header
	body   []byte
}

func textResponse(status int, contentType, body string) response {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return response{status: status, header: header, body: []byte(body)}
}

// dispatch handles a request routed to the upload endpoint
func (s *Server) dispatch(method, contentType string, body io.Reader) response {
	switch method {
	case http.MethodGet:
		return textResponse(http.StatusOK, contentTypeHTML, fmt.Sprintf(uploadFormTemplate, html.EscapeString(s.cfg.Route)))

	case http.MethodOptions:
		resp := textResponse(http.StatusOK, "", "")
		resp.header.Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		resp.header.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		resp.header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		return resp

	case http.MethodPost:
		return s.handleUpload(contentType, body)

	default:
		return textResponse(http.StatusMethodNotAllowed, contentTypeText, "Method Not Allowed")
	}
}

func (s *Server) handleUpload(contentType string, body io.Reader) response {
	data, err := readPDFPart(contentType, body, s.cfg.MaxUploadBytes())
	switch {
	case errors.Is(err, ErrUploadTooLarge):
		return s.errorResponse(http.StatusRequestEntityTooLarge, err.Error())
	case err != nil:
		return s.errorResponse(http.StatusBadRequest, noPDFMessage)
	}

	key := cacheKey(data)
	if cached, ok := s.cache.get(key); ok {
		return s.jsonResponse(http.StatusOK, cached)
	}

	result, err := s.parser.ParseBytes(data)
	if err != nil {
		return s.errorResponse(http.StatusInternalServerError, err.Error())
	}

	encoded, err := encodeJSON(result)
	if err != nil {
		return s.errorResponse(http.StatusInternalServerError, err.Error())
	}
	s.cache.set(key, encoded)

	return s.jsonResponse(http.StatusOK, encoded)
}

func (s *Server) jsonResponse(status int, body []byte) response {
	resp := textResponse(status, contentTypeJSON, "")
	resp.header.Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
	resp.body = body
	return resp
}

func (s *Server) errorResponse(status int, message string) response {
	body, err := encodeJSON(map[string]string{"error": message})
	if err != nil {
		body = []byte(`{"error":"internal error"}`)
	}
	return s.jsonResponse(status, body)
}

// encodeJSON marshals v without HTML escaping so umlauts and '&' pass through
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// readPDFPart returns the contents of the first "pdf" part of a multipart body
func readPDFPart(contentType string, body io.Reader, limit int64) ([]byte, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPDF, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return nil, fmt.Errorf("%w: not a multipart body", ErrNoPDF)
	}

	reader := multipart.NewReader(body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoPDF
		}
		if err != nil {
			return nil, classifyReadError(err)
		}

		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, limit+1))
		_ = part.Close()
		if err != nil {
			return nil, classifyReadError(err)
		}
		if int64(len(data)) > limit {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, limit)
		}
		if len(data) == 0 {
			return nil, ErrNoPDF
		}
		return data, nil
	}
}

func classifyReadError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, maxBytes.Limit)
	}
	return fmt.Errorf("%w: %v", ErrNoPDF, err)
}
