package collection

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitbox/packages/core/template"
	"gopkg.in/yaml.v3"
)

type RecipeID string

type ProfileID string

type Method string

const (
	MethodConnect Method = "CONNECT"
	MethodDelete  Method = "DELETE"
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
	MethodPatch   Method = "PATCH"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodTrace   Method = "TRACE"
)

var methods = []Method{
	MethodConnect, MethodDelete, MethodGet, MethodHead, MethodOptions,
	MethodPatch, MethodPost, MethodPut, MethodTrace,
}

// ParseMethod accepts any casing of a supported method.
func ParseMethod(s string) (Method, error) {
	upper := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, m := range methods {
		if m == upper {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported HTTP method %q", s)
}

func (m *Method) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseMethod(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = parsed
	return nil
}

// Param is a single name/template pair.
type Param struct {
	Name  string
	Value template.Template
}

// Params is an ordered list of name/template pairs, decoded from a YAML mapping.
type Params []Param

func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	params := make(Params, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var value string
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", node.Content[i+1].Line, err)
		}
		params = append(params, Param{
			Name:  node.Content[i].Value,
			Value: template.Template(value),
		})
	}
	*p = params
	return nil
}

type AuthType string

const (
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
)

// Authentication is generic over its value type so the same shape serves
// recipe templates (T = template.Template) and rendered values (T = string).
type Authentication[T any] struct {
	Type     AuthType `yaml:"type"`
	Username T        `yaml:"username,omitempty"`
	// Password is optional for basic auth
	Password *T `yaml:"password,omitempty"`
	Token    T  `yaml:"token,omitempty"`
}

func BasicAuth[T any](username T, password *T) *Authentication[T] {
	return &Authentication[T]{Type: AuthBasic, Username: username, Password: password}
}

func BearerAuth[T any](token T) *Authentication[T] {
	return &Authentication[T]{Type: AuthBearer, Token: token}
}

// RecipeBody holds exactly one of a raw template or a form.
type RecipeBody struct {
	Raw            *template.Template `yaml:"raw,omitempty"`
	FormURLEncoded Params             `yaml:"form_urlencoded,omitempty"`
	FormMultipart  Params             `yaml:"form_multipart,omitempty"`
}

func RawBody(t template.Template) *RecipeBody {
	return &RecipeBody{Raw: &t}
}

// UnmarshalYAML also accepts a bare string as a raw body.
func (b *RecipeBody) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var raw string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*b = *RawBody(template.Template(raw))
		return nil
	}
	type plain RecipeBody
	return node.Decode((*plain)(b))
}

// IsForm reports whether the body is built from form fields.
func (b *RecipeBody) IsForm() bool {
	return b.FormURLEncoded != nil || b.FormMultipart != nil
}

func (b *RecipeBody) validate() error {
	set := 0
	if b.Raw != nil {
		set++
	}
	if b.FormURLEncoded != nil {
		set++
	}
	if b.FormMultipart != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("body must set exactly one of raw, form_urlencoded, form_multipart")
	}
	return nil
}

// Recipe is a template for a single HTTP request.
type Recipe struct {
	ID             RecipeID                           `yaml:"-"`
	Name           string                             `yaml:"name,omitempty"`
	Method         Method                             `yaml:"method"`
	URL            template.Template                  `yaml:"url"`
	Query          Params                             `yaml:"query,omitempty"`
	Headers        Params                             `yaml:"headers,omitempty"`
	Authentication *Authentication[template.Template] `yaml:"authentication,omitempty"`
	Body           *RecipeBody                        `yaml:"body,omitempty"`
}

// DisplayName prefers the human name and falls back to the ID.
func (r *Recipe) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return string(r.ID)
}

func (r *Recipe) validate() error {
	if r.Method == "" {
		r.Method = MethodGet
	}
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	if auth := r.Authentication; auth != nil {
		switch auth.Type {
		case AuthBasic:
			if auth.Username == "" {
				return fmt.Errorf("basic authentication requires a username")
			}
		case AuthBearer:
			if auth.Token == "" {
				return fmt.Errorf("bearer authentication requires a token")
			}
		default:
			return fmt.Errorf("unsupported authentication type %q", auth.Type)
		}
	}
	if r.Body != nil {
		return r.Body.validate()
	}
	return nil
}

// Profile is a named set of template fields.
type Profile struct {
	ID      ProfileID         `yaml:"-"`
	Name    string            `yaml:"name,omitempty"`
	Default bool              `yaml:"default,omitempty"`
	Data    map[string]string `yaml:"data,omitempty"`
}
