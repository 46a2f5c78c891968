package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

// HandleEvent serves an API Gateway proxy event. Only the configured route is
// served; other paths get an empty 404.
func (s *Server) HandleEvent(_ context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()

	requestID := req.RequestContext.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	resp := s.dispatchEvent(req)

	s.logger.Info("event",
		"id", requestID,
		"method", req.HTTPMethod,
		"path", req.Path,
		"status", resp.status,
		"duration", time.Since(start),
	)

	proxy := toProxyResponse(resp)
	// Proxy headers are a plain map, so the key is written as spelled
	proxy.Headers[RequestIDHeader] = requestID
	return proxy, nil
}

func (s *Server) dispatchEvent(req events.APIGatewayProxyRequest) response {
	if req.Path != s.cfg.Route {
		return textResponse(http.StatusNotFound, "", "")
	}

	if req.HTTPMethod != http.MethodPost {
		return s.dispatch(req.HTTPMethod, "", nil)
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return s.errorResponse(http.StatusInternalServerError, "failed to decode request body: "+err.Error())
		}
		body = decoded
	}

	return s.dispatch(req.HTTPMethod, headerValue(req.Headers, "Content-Type"), bytes.NewReader(body))
}

// headerValue looks up a header regardless of its casing
func headerValue(headers map[string]string, name string) string {
	if value, ok := headers[name]; ok {
		return value
	}
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

func toProxyResponse(resp response) events.APIGatewayProxyResponse {
	headers := make(map[string]string, len(resp.header))
	for key := range resp.header {
		headers[key] = resp.header.Get(key)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: resp.status,
		Headers:    headers,
		Body:       string(resp.body),
	}
}
