package template

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/hitbox/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

var (
	// ErrUnknownField is returned for a {{name}} that is neither overridden
	// nor defined in the selected profile
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownEnv is returned for a {{$NAME}} that is not set
	ErrUnknownEnv = errors.New("environment variable not set")
	// ErrInvalidUTF8 is returned by RenderString when output is not UTF-8
	ErrInvalidUTF8 = errors.New("rendered value is not valid UTF-8")
)

// Template is an unrendered string that may contain {{...}} expressions.
type Template string

func (t Template) String() string {
	return string(t)
}

// IsDynamic reports whether the template contains any expression.
func (t Template) IsDynamic() bool {
	return variablePattern.MatchString(string(t))
}

// Expressions lists the trimmed expressions in the template in source order.
func (t Template) Expressions() []string {
	matches := variablePattern.FindAllStringSubmatch(string(t), -1)
	exprs := make([]string, 0, len(matches))
	for _, m := range matches {
		exprs = append(exprs, strings.TrimSpace(m[1]))
	}
	return exprs
}

// RenderError describes a single expression that failed to render.
type RenderError struct {
	Template Template
	Expr     string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering {{%s}}: %v", e.Expr, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Context carries everything a template may reference.
type Context struct {
	// ProfileID is the selected profile, empty when none is selected
	ProfileID string
	// Profile holds the selected profile's fields
	Profile map[string]string
	// Overrides shadow profile fields for a single execution
	Overrides map[string]string
	// Env shadows the process environment for {{$NAME}} lookups
	Env       map[string]string
	Functions *builtin.Registry
	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
}

// NewContext returns a Context with the default function registry.
func NewContext(profileID string, profile map[string]string) *Context {
	return &Context{
		ProfileID: profileID,
		Profile:   profile,
		Functions: builtin.NewRegistry(),
	}
}

// SelectedProfile returns the selected profile ID, or "" when none.
func (c *Context) SelectedProfile() string {
	return c.ProfileID
}

// Render resolves every expression in t.
func (c *Context) Render(ctx context.Context, t Template) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := string(t)
	locs := variablePattern.FindAllStringSubmatchIndex(src, -1)
	if len(locs) == 0 {
		return []byte(src), nil
	}

	var out strings.Builder
	out.Grow(len(src))
	last := 0
	for _, loc := range locs {
		out.WriteString(src[last:loc[0]])
		expr := strings.TrimSpace(src[loc[2]:loc[3]])
		value, err := c.resolve(expr)
		if err != nil {
			return nil, &RenderError{Template: t, Expr: expr, Err: err}
		}
		out.WriteString(value)
		last = loc[1]
	}
	out.WriteString(src[last:])

	return []byte(out.String()), nil
}

// RenderString is Render for values that must be text.
func (c *Context) RenderString(ctx context.Context, t Template) (string, error) {
	b, err := c.Render(ctx, t)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", &RenderError{Template: t, Expr: string(t), Err: ErrInvalidUTF8}
	}
	return string(b), nil
}

func (c *Context) resolve(expr string) (string, error) {
	if name, ok := strings.CutPrefix(expr, "$"); ok {
		return c.env(name)
	}

	if builtin.IsCall(expr) {
		funcs := c.Functions
		if funcs == nil {
			funcs = builtin.NewRegistry()
		}
		return funcs.Call(expr)
	}

	if v, ok := c.Overrides[expr]; ok {
		return v, nil
	}
	if v, ok := c.Profile[expr]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w `%s`", ErrUnknownField, expr)
}

func (c *Context) env(name string) (string, error) {
	if v, ok := c.Env[name]; ok {
		return v, nil
	}
	lookup := c.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(name); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: $%s", ErrUnknownEnv, name)
}
