package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transcript "github.com/alparslanahmed/transcript-parser-go"
	"github.com/alparslanahmed/transcript-parser-go/internal/config"
)

const route = "/api/parse-transcript"

// countingExtractor returns fixed text and counts its calls
type countingExtractor struct {
	text  string
	err   error
	calls atomic.Int32
}

func (e *countingExtractor) ExtractText([]byte) (string, error) {
	e.calls.Add(1)
	return e.text, e.err
}

func newTestServer(t *testing.T, extractor transcript.TextExtractor, modify func(*config.Config)) *Server {
	t.Helper()

	cfg := config.Default()
	if modify != nil {
		modify(cfg)
	}

	parser := transcript.NewParser()
	parser.SetExtractor(extractor)

	srv, err := New(cfg, parser, log.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, "transcript.pdf")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func postPDF(t *testing.T, srv *Server, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, "pdf", data)
	req := httptest.NewRequest(http.MethodPost, route, body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresParser(t *testing.T) {
	_, err := New(config.Default(), nil, nil)
	assert.Error(t, err)
}

func TestServeHTTP_Get(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, route, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `action="/api/parse-transcript"`)
	assert.Contains(t, rec.Body.String(), `name="pdf"`)
}

func TestServeHTTP_Options(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{}, func(c *config.Config) {
		c.Server.AllowedOrigin = "https://grades.example.org"
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, route, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://grades.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Empty(t, rec.Body.String())
}

func TestServeHTTP_PostParsesUpload(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{text: "CS1001 Intro\n2,3\nGesamtcredits 30\n"}, nil)

	rec := postPDF(t, srv, []byte("%PDF-1.7 transcript"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t,
		`{"gpa":null,"total_credits":30,"courses":[{"module_id":"CS1001","grade":"2.3"}]}`,
		rec.Body.String(),
	)
}

func TestServeHTTP_PostErrors(t *testing.T) {
	t.Run("Missing pdf part", func(t *testing.T) {
		srv := newTestServer(t, &countingExtractor{}, nil)

		body, contentType := multipartBody(t, "document", []byte("%PDF-1.7"))
		req := httptest.NewRequest(http.MethodPost, route, body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "No PDF provided"}`, rec.Body.String())
	})

	t.Run("Not multipart", func(t *testing.T) {
		srv := newTestServer(t, &countingExtractor{}, nil)

		req := httptest.NewRequest(http.MethodPost, route, strings.NewReader("%PDF-1.7"))
		req.Header.Set("Content-Type", "application/pdf")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "No PDF provided"}`, rec.Body.String())
	})

	t.Run("Extraction failure", func(t *testing.T) {
		srv := newTestServer(t, &countingExtractor{err: errors.New("broken xref table")}, nil)

		rec := postPDF(t, srv, []byte("%PDF-1.7"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "failed to extract text from PDF")
		assert.Contains(t, rec.Body.String(), "broken xref table")
	})

	t.Run("Upload too large", func(t *testing.T) {
		srv := newTestServer(t, &countingExtractor{}, func(c *config.Config) {
			c.Server.MaxUploadMB = 1
		})

		rec := postPDF(t, srv, bytes.Repeat([]byte("x"), 1<<20+1))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "upload too large")
	})
}

func TestServeHTTP_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, route, nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method Not Allowed", rec.Body.String())
}

func TestServeHTTP_Routing(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{}, nil)

	tests := []struct {
		path string
		want int
	}{
		{path: route, want: http.StatusOK},
		{path: "/", want: http.StatusOK},
		{path: "/api/other", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServeHTTP_RequestID(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{}, nil)

	t.Run("Generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, route, nil))
		assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	})

	t.Run("Reused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, route, nil)
		req.Header.Set(RequestIDHeader, "upstream-42")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, "upstream-42", rec.Header().Get(RequestIDHeader))
	})
}

func TestServeHTTP_LogsRequests(t *testing.T) {
	var buf bytes.Buffer
	parser := transcript.NewParser()
	parser.SetExtractor(&countingExtractor{})
	srv, err := New(config.Default(), parser, log.New(&buf))
	require.NoError(t, err)
	defer srv.Close()

	srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, route, nil))

	assert.Contains(t, buf.String(), "request")
	assert.Contains(t, buf.String(), "status=405")
}

func TestServeHTTP_ResultCache(t *testing.T) {
	pdf := []byte("%PDF-1.7 same bytes")

	t.Run("Enabled", func(t *testing.T) {
		extractor := &countingExtractor{text: "CS1001\n2,3\n"}
		srv := newTestServer(t, extractor, nil)

		first := postPDF(t, srv, pdf)
		second := postPDF(t, srv, pdf)

		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, int32(1), extractor.calls.Load())

		postPDF(t, srv, []byte("%PDF-1.7 other bytes"))
		assert.Equal(t, int32(2), extractor.calls.Load())
	})

	t.Run("Disabled", func(t *testing.T) {
		extractor := &countingExtractor{text: "CS1001\n2,3\n"}
		srv := newTestServer(t, extractor, func(c *config.Config) {
			c.Cache.Enabled = false
		})

		postPDF(t, srv, pdf)
		postPDF(t, srv, pdf)

		assert.Equal(t, int32(2), extractor.calls.Load())
	})

	t.Run("Failures are not cached", func(t *testing.T) {
		extractor := &countingExtractor{err: errors.New("broken")}
		srv := newTestServer(t, extractor, nil)

		postPDF(t, srv, pdf)
		postPDF(t, srv, pdf)

		assert.Equal(t, int32(2), extractor.calls.Load())
	})
}

func TestEncodeJSON_KeepsNonASCII(t *testing.T) {
	out, err := encodeJSON(map[string]string{"error": "Prüfung & <Note>"})
	require.NoError(t, err)
	assert.Equal(t, `{"error":"Prüfung & <Note>"}`, string(out))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{}, func(c *config.Config) {
		c.Server.ShutdownTimeout = time.Second
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, listener)
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + route)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestHandleEvent(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{text: "MAT10020\n1,7\n"}, nil)
	body, contentType := multipartBody(t, "pdf", []byte("%PDF-1.7"))

	tests := []struct {
		name       string
		req        events.APIGatewayProxyRequest
		wantStatus int
		wantBody   string
	}{
		{
			name:       "Wrong path",
			req:        events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/"},
			wantStatus: http.StatusNotFound,
			wantBody:   "",
		},
		{
			name:       "Method not allowed",
			req:        events.APIGatewayProxyRequest{HTTPMethod: http.MethodDelete, Path: route},
			wantStatus: http.StatusMethodNotAllowed,
			wantBody:   "Method Not Allowed",
		},
		{
			name: "Plain body with lowercase header",
			req: events.APIGatewayProxyRequest{
				HTTPMethod: http.MethodPost,
				Path:       route,
				Headers:    map[string]string{"content-type": contentType},
				Body:       body.String(),
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"gpa":null,"total_credits":null,"courses":[{"module_id":"MAT10020","grade":"1.7"}]}`,
		},
		{
			name: "Base64 body",
			req: events.APIGatewayProxyRequest{
				HTTPMethod:      http.MethodPost,
				Path:            route,
				Headers:         map[string]string{"Content-Type": contentType},
				Body:            base64.StdEncoding.EncodeToString(body.Bytes()),
				IsBase64Encoded: true,
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"gpa":null,"total_credits":null,"courses":[{"module_id":"MAT10020","grade":"1.7"}]}`,
		},
		{
			name: "Missing content type",
			req: events.APIGatewayProxyRequest{
				HTTPMethod: http.MethodPost,
				Path:       route,
				Body:       body.String(),
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"No PDF provided"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := srv.HandleEvent(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantBody, resp.Body)
			assert.NotEmpty(t, resp.Headers[RequestIDHeader])
		})
	}
}

func TestHandleEvent_GetAndOptions(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{}, nil)

	resp, err := srv.HandleEvent(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: route})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Headers["Content-Type"])

	resp, err = srv.HandleEvent(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodOptions, Path: route})
	require.NoError(t, err)
	assert.Equal(t, "POST, OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
}

func TestHandleEvent_InvalidBase64(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{}, nil)

	resp, err := srv.HandleEvent(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            route,
		Body:            "not base64!",
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, resp.Body, "failed to decode request body")
}

func TestHandleEvent_RequestIDFromContext(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{}, nil)

	req := events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: route}
	req.RequestContext.RequestID = "gw-123"

	resp, err := srv.HandleEvent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "gw-123", resp.Headers[RequestIDHeader])
}

func TestHandleEvent_RequestIDHeaderSpelling(t *testing.T) {
	srv := newTestServer(t, &countingExtractor{}, nil)

	for _, path := range []string{route, "/elsewhere"} {
		resp, err := srv.HandleEvent(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: path})
		require.NoError(t, err)

		assert.Contains(t, resp.Headers, "X-Request-ID")
		assert.NotContains(t, resp.Headers, "X-Request-Id")
		assert.Len(t, resp.Headers["X-Request-ID"], 36)
	}
}
