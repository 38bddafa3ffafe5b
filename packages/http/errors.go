package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
)

// ErrTicketSent is returned when a ticket is sent a second time.
var ErrTicketSent = errors.New("request ticket already sent")

// ErrorKind classifies why a request could not be built.
type ErrorKind int

const (
	KindRender ErrorKind = iota + 1
	KindInvalidURL
	KindInvalidHeader
	KindEncode
)

func (k ErrorKind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindInvalidURL:
		return "invalid url"
	case KindInvalidHeader:
		return "invalid header"
	case KindEncode:
		return "encode"
	default:
		return "unknown"
	}
}

// FacetError names the part of a request that failed to build.
type FacetError struct {
	Kind    ErrorKind
	Context string
	Err     error
}

func (e *FacetError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Err)
}

func (e *FacetError) Unwrap() error {
	return e.Err
}

func facetErr(kind ErrorKind, err error, format string, args ...any) error {
	return &FacetError{Kind: kind, Context: fmt.Sprintf(format, args...), Err: err}
}

// BuildError is returned when a seed could not be built into a ticket. No
// network I/O has happened.
type BuildError struct {
	ID        RequestID
	RecipeID  collection.RecipeID
	ProfileID collection.ProfileID
	Err       error
}

func newBuildError(seed RequestSeed, profileID string, err error) *BuildError {
	return &BuildError{
		ID:        seed.ID,
		RecipeID:  seed.Recipe.ID,
		ProfileID: collection.ProfileID(profileID),
		Err:       err,
	}
}

func (e *BuildError) Error() string {
	if e.ProfileID == "" {
		return fmt.Sprintf("building request for recipe `%s`: %v", e.RecipeID, e.Err)
	}
	return fmt.Sprintf("building request for recipe `%s` with profile `%s`: %v", e.RecipeID, e.ProfileID, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Kind returns the kind of the innermost facet failure, or 0 if there is none.
func (e *BuildError) Kind() ErrorKind {
	var kind ErrorKind
	err := e.Err
	for {
		var facet *FacetError
		if !errors.As(err, &facet) {
			return kind
		}
		kind = facet.Kind
		err = facet.Err
	}
}

// RequestError is returned when a built request failed in flight. It keeps
// the request and timing so the attempt can still be displayed.
type RequestError struct {
	Request   *RequestRecord
	StartTime time.Time
	EndTime   time.Time
	Err       error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Request.Method, e.Request.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
