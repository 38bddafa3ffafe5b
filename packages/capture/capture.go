package capture

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitbox/packages/http"
	"github.com/tidwall/gjson"
)

type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
)

// Capture names a single value to pull out of an exchange.
type Capture struct {
	Name   string
	Source Source
	// Path is a gjson path for body captures and a header name for header
	// captures. An empty body path selects the whole body.
	Path string
}

// ParseSelector parses a selector as accepted by --filter:
//
//	status
//	duration
//	header:<name>
//	body:<gjson path>
//	<gjson path>
func ParseSelector(selector string) (*Capture, error) {
	selector = strings.TrimSpace(selector)
	switch {
	case selector == "status":
		return &Capture{Name: selector, Source: SourceStatus}, nil
	case selector == "duration":
		return &Capture{Name: selector, Source: SourceDuration}, nil
	case strings.HasPrefix(selector, "header:"):
		name := strings.TrimSpace(strings.TrimPrefix(selector, "header:"))
		if name == "" {
			return nil, fmt.Errorf("selector %q: missing header name", selector)
		}
		return &Capture{Name: name, Source: SourceHeader, Path: name}, nil
	default:
		path := strings.TrimPrefix(selector, "body:")
		return &Capture{Name: path, Source: SourceBody, Path: path}, nil
	}
}

type Extractor struct {
	exchange *http.Exchange
	bodyJSON gjson.Result
}

func NewExtractor(exchange *http.Exchange) *Extractor {
	e := &Extractor{
		exchange: exchange,
	}
	if resp := exchange.Response; resp.IsJSON() || gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

func (e *Extractor) Extract(capture *Capture) (any, bool) {
	switch capture.Source {
	case SourceBody:
		return e.extractFromBody(capture.Path)
	case SourceHeader:
		return e.extractFromHeader(capture.Path)
	case SourceStatus:
		return e.exchange.Response.StatusCode, true
	case SourceDuration:
		return e.exchange.Duration().Milliseconds(), true
	default:
		return nil, false
	}
}

// Raw returns the selected value as text: JSON for body values, the plain
// value otherwise.
func (e *Extractor) Raw(capture *Capture) (string, bool) {
	if capture.Source == SourceBody && capture.Path != "" && e.bodyJSON.Exists() {
		result := e.bodyJSON.Get(capture.Path)
		if !result.Exists() {
			return "", false
		}
		return result.Raw, true
	}
	v, ok := e.Extract(capture)
	if !ok {
		return "", false
	}
	return fmt.Sprint(v), true
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.exchange.Response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	values := e.exchange.Response.Headers.Values(name)
	if len(values) == 0 {
		return nil, false
	}
	return values[0], true
}

func ExtractAll(exchange *http.Exchange, captures []*Capture) map[string]any {
	extractor := NewExtractor(exchange)
	results := make(map[string]any)

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		}
	}

	return results
}
