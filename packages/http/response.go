package http

import (
	"encoding/json"
	"mime"
	"strings"
)

func (r *ResponseRecord) BodyString() string {
	return string(r.Body)
}

func (r *ResponseRecord) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Header returns the first value of the named header, matched case-insensitively.
func (r *ResponseRecord) Header(key string) string {
	return r.Headers.Get(key)
}

func (r *ResponseRecord) ContentType() string {
	return r.Header("Content-Type")
}

// IsJSON reports whether the content type is application/json or a +json
// suffix type.
func (r *ResponseRecord) IsJSON() bool {
	mediaType, _, err := mime.ParseMediaType(r.ContentType())
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func (r *ResponseRecord) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *ResponseRecord) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *ResponseRecord) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *ResponseRecord) IsServerError() bool {
	return r.StatusCode >= 500
}
