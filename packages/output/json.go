package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitbox/packages/http"
)

// JSONExchange represents one request/response pair
type JSONExchange struct {
	ID        string        `json:"id"`
	Recipe    string        `json:"recipe"`
	Profile   string        `json:"profile,omitempty"`
	Request   JSONRequest   `json:"request"`
	Response  *JSONResponse `json:"response,omitempty"`
	StartTime string        `json:"startTime"`
	Duration  float64       `json:"duration"` // milliseconds
}

// JSONRequest represents request details
type JSONRequest struct {
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    string              `json:"body,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int                 `json:"statusCode"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       json.RawMessage     `json:"body,omitempty"`
}

// JSONError represents a failed build or send
type JSONError struct {
	Kind    string        `json:"kind"` // build, request or error
	ID      string        `json:"id,omitempty"`
	Message string        `json:"message"`
	Recipe  string        `json:"recipe,omitempty"`
	Profile string        `json:"profile,omitempty"`
	Attempt *JSONExchange `json:"attempt,omitempty"`
}

// JSONFormatter writes one JSON document per call
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) encode(v any) {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}

func newJSONRequest(req *http.RequestRecord) JSONRequest {
	return JSONRequest{
		Method:  string(req.Method),
		URL:     req.URL.String(),
		Headers: req.Headers,
		Body:    string(req.Body),
	}
}

// bodyJSON embeds JSON bodies as-is and everything else as a string.
func bodyJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return body
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

func newJSONExchange(e *http.Exchange) JSONExchange {
	return JSONExchange{
		ID:      e.ID.String(),
		Recipe:  string(e.Request.RecipeID),
		Profile: string(e.Request.ProfileID),
		Request: newJSONRequest(e.Request),
		Response: &JSONResponse{
			StatusCode: e.Response.StatusCode,
			Headers:    e.Response.Headers,
			Body:       bodyJSON(e.Response.Body),
		},
		StartTime: e.StartTime.Format(time.RFC3339Nano),
		Duration:  float64(e.Duration().Microseconds()) / 1000,
	}
}

func (f *JSONFormatter) FormatExchange(exchange *http.Exchange) {
	f.encode(newJSONExchange(exchange))
}

func (f *JSONFormatter) FormatError(err error) {
	out := JSONError{Kind: "error", Message: err.Error()}

	var buildErr *http.BuildError
	var reqErr *http.RequestError
	switch {
	case errors.As(err, &buildErr):
		out.Kind = "build"
		out.ID = buildErr.ID.String()
		out.Recipe = string(buildErr.RecipeID)
		out.Profile = string(buildErr.ProfileID)
	case errors.As(err, &reqErr):
		out.Kind = "request"
		out.ID = reqErr.Request.ID.String()
		out.Recipe = string(reqErr.Request.RecipeID)
		out.Profile = string(reqErr.Request.ProfileID)
		out.Attempt = &JSONExchange{
			ID:        reqErr.Request.ID.String(),
			Recipe:    string(reqErr.Request.RecipeID),
			Profile:   string(reqErr.Request.ProfileID),
			Request:   newJSONRequest(reqErr.Request),
			StartTime: reqErr.StartTime.Format(time.RFC3339Nano),
			Duration:  float64(reqErr.EndTime.Sub(reqErr.StartTime).Microseconds()) / 1000,
		}
	}
	f.encode(map[string]JSONError{"error": out})
}

func (f *JSONFormatter) FormatHistory(exchanges []*http.Exchange) {
	out := make([]JSONExchange, 0, len(exchanges))
	for _, e := range exchanges {
		out = append(out, newJSONExchange(e))
	}
	f.encode(out)
}

func (f *JSONFormatter) FormatStats(stats *Stats) {
	f.encode(stats)
}
