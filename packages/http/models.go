package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	"github.com/google/uuid"
)

// RequestID identifies one build attempt and everything that follows from it.
type RequestID uuid.UUID

func NewRequestID() RequestID {
	return RequestID(uuid.New())
}

func ParseRequestID(s string) (RequestID, error) {
	id, err := uuid.Parse(s)
	return RequestID(id), err
}

func (id RequestID) String() string {
	return uuid.UUID(id).String()
}

// BuildOptions are per-build overrides. Disabled fields are dropped before
// rendering, so a broken template in a disabled field never fails a build.
type BuildOptions struct {
	// DisabledHeaders is matched case-insensitively against recipe header names
	DisabledHeaders []string
	// DisabledQueryParameters is matched exactly against recipe parameter names
	DisabledQueryParameters []string
	// Authentication replaces the recipe's authentication when set
	Authentication *collection.Authentication[string]
	// Body replaces the recipe's body when non-nil
	Body []byte
	// FormFields replace individual form fields of a form body
	FormFields map[string]string
}

func (o *BuildOptions) headerDisabled(name string) bool {
	for _, h := range o.DisabledHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

func (o *BuildOptions) queryDisabled(name string) bool {
	for _, q := range o.DisabledQueryParameters {
		if q == name {
			return true
		}
	}
	return false
}

// RequestSeed is everything needed to build one request.
type RequestSeed struct {
	ID      RequestID
	Recipe  *collection.Recipe
	Options BuildOptions
}

// NewRequestSeed snapshots the recipe and assigns a fresh request ID.
func NewRequestSeed(recipe collection.Recipe, options BuildOptions) RequestSeed {
	return RequestSeed{
		ID:      NewRequestID(),
		Recipe:  &recipe,
		Options: options,
	}
}

// RequestRecord is the audit copy of a built request. It is shared by
// pointer once built and must be treated as read-only.
type RequestRecord struct {
	ID RequestID
	// ProfileID is empty when the build had no profile selected
	ProfileID collection.ProfileID
	RecipeID  collection.RecipeID
	Method    collection.Method
	URL       *url.URL
	Headers   http.Header
	// Body is nil when the request has no body
	Body []byte
}

// newRequestRecord copies the native request so the record always matches
// what is put on the wire.
func newRequestRecord(seed RequestSeed, profileID string, req *http.Request, body []byte) *RequestRecord {
	u := *req.URL
	var recordBody []byte
	if body != nil {
		recordBody = append([]byte{}, body...)
	}
	return &RequestRecord{
		ID:        seed.ID,
		ProfileID: collection.ProfileID(profileID),
		RecipeID:  seed.Recipe.ID,
		Method:    collection.Method(req.Method),
		URL:       &u,
		Headers:   req.Header.Clone(),
		Body:      recordBody,
	}
}

// ResponseRecord is a fully buffered response.
type ResponseRecord struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Exchange pairs a request with its response. StartTime <= EndTime.
type Exchange struct {
	ID        RequestID
	Request   *RequestRecord
	Response  *ResponseRecord
	StartTime time.Time
	EndTime   time.Time
}

func (e *Exchange) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}
