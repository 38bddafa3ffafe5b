package jetbrains

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	"github.com/abdul-hamid-achik/hitbox/packages/core/template"
)

const formContentType = "application/x-www-form-urlencoded"

// DefaultProfile is the profile file variables are imported into.
const DefaultProfile collection.ProfileID = "default"

// Converter converts parsed .http files into collections.
type Converter struct {
	profile collection.ProfileID
}

// Option is a functional option for Converter.
type Option func(*Converter)

// WithProfile sets the ID of the profile holding file variables.
func WithProfile(id collection.ProfileID) Option {
	return func(c *Converter) {
		c.profile = id
	}
}

func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		profile: DefaultProfile,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertFile parses and converts a single .http file.
func (c *Converter) ConvertFile(path string) (*collection.Collection, error) {
	file, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return c.Convert(file)
}

// Convert maps file variables to a default profile and requests to recipes.
func (c *Converter) Convert(file *File) (*collection.Collection, error) {
	out := &collection.Collection{}

	if len(file.Variables) > 0 {
		data := make(map[string]string, len(file.Variables))
		for _, v := range file.Variables {
			data[v.Name] = string(convertTemplate(v.Value))
		}
		out.Profiles = append(out.Profiles, collection.Profile{
			ID:      c.profile,
			Default: true,
			Data:    data,
		})
	}

	ids := make(map[collection.RecipeID]bool, len(file.Requests))
	for i, req := range file.Requests {
		recipe, err := convertRequest(req)
		if err != nil {
			return nil, &ParseError{File: file.Path, Line: req.Line, Message: err.Error()}
		}
		recipe.ID = uniqueID(recipeID(req.Name, i+1), ids)
		if req.Name != "" && string(recipe.ID) != req.Name {
			recipe.Name = req.Name
		}
		out.Recipes = append(out.Recipes, *recipe)
	}
	return out, nil
}

func convertRequest(req *Request) (*collection.Recipe, error) {
	method, err := collection.ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}
	if req.URL == "" {
		return nil, fmt.Errorf("request has no URL")
	}

	base, query := splitQuery(req.URL)
	recipe := &collection.Recipe{
		Method: method,
		URL:    convertTemplate(base),
		Query:  query,
	}

	var contentType string
	for _, h := range req.Headers {
		if strings.EqualFold(h.Key, "Authorization") {
			if auth := parseAuthorization(h.Value); auth != nil {
				recipe.Authentication = auth
				continue
			}
		}
		if strings.EqualFold(h.Key, "Content-Type") {
			contentType = h.Value
		}
		recipe.Headers = append(recipe.Headers, collection.Param{
			Name:  h.Key,
			Value: convertTemplate(h.Value),
		})
	}

	if req.Body != "" {
		recipe.Body = convertBody(req.Body, contentType)
		if recipe.Body.IsForm() {
			recipe.Headers = withoutHeader(recipe.Headers, "Content-Type")
		}
	}
	return recipe, nil
}

// splitQuery splits the query string off a request target. Parameters keep
// their order and templates are left intact.
func splitQuery(target string) (string, collection.Params) {
	base, rawQuery, ok := strings.Cut(target, "?")
	if !ok {
		return base, nil
	}
	return base, parsePairs(rawQuery)
}

func parsePairs(raw string) collection.Params {
	var params collection.Params
	for _, pair := range strings.Split(raw, "&") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		params = append(params, collection.Param{
			Name:  unescape(key),
			Value: convertTemplate(unescape(value)),
		})
	}
	return params
}

func unescape(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

// parseAuthorization recognizes "Bearer <token>", "Basic <user> <password>"
// and "Basic <base64(user:password)>". Anything else stays a header.
func parseAuthorization(value string) *collection.Authentication[template.Template] {
	scheme, rest, _ := strings.Cut(strings.TrimSpace(value), " ")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil
	}

	switch strings.ToLower(scheme) {
	case "bearer":
		return collection.BearerAuth(convertTemplate(rest))
	case "basic":
		if user, password, ok := strings.Cut(rest, " "); ok {
			pw := convertTemplate(strings.TrimSpace(password))
			return collection.BasicAuth(convertTemplate(user), &pw)
		}
		decoded, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil
		}
		user, password, ok := strings.Cut(string(decoded), ":")
		if !ok {
			return collection.BasicAuth[template.Template](template.Template(user), nil)
		}
		pw := template.Template(password)
		return collection.BasicAuth(template.Template(user), &pw)
	}
	return nil
}

func convertBody(body, contentType string) *collection.RecipeBody {
	mediaType, _, _ := strings.Cut(contentType, ";")
	if strings.EqualFold(strings.TrimSpace(mediaType), formContentType) && !strings.Contains(body, "\n") {
		return &collection.RecipeBody{FormURLEncoded: parsePairs(body)}
	}
	return collection.RawBody(convertTemplate(body))
}

func withoutHeader(headers collection.Params, name string) collection.Params {
	out := headers[:0]
	for _, h := range headers {
		if !strings.EqualFold(h.Name, name) {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var (
	dynamicVariablePattern = regexp.MustCompile(`\{\{\s*\$([\w.]+)(?:\s+(\w+))?\s*\}\}`)
	dynamicVariables       = map[string]string{
		"uuid":           "uuid()",
		"random.uuid":    "uuid()",
		"timestamp":      "timestamp()",
		"isoTimestamp":   "now()",
		"randomInt":      "random(0, 1000)",
		"random.integer": "random(0, 1000)",
	}
)

// convertTemplate rewrites JetBrains dynamic variables into template
// functions. {{$processEnv NAME}} becomes {{$NAME}}.
func convertTemplate(s string) template.Template {
	out := dynamicVariablePattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := dynamicVariablePattern.FindStringSubmatch(match)
		name, arg := groups[1], groups[2]
		if name == "processEnv" && arg != "" {
			return "{{$" + arg + "}}"
		}
		if fn, ok := dynamicVariables[name]; ok {
			return "{{" + fn + "}}"
		}
		return match
	})
	return template.Template(out)
}

var nonIdentifier = regexp.MustCompile(`[^a-z0-9_]+`)

// recipeID derives an ID from a request name, falling back to request_<n>.
func recipeID(name string, n int) collection.RecipeID {
	id := nonIdentifier.ReplaceAllString(strings.ToLower(name), "_")
	id = strings.Trim(id, "_")
	if id == "" {
		id = fmt.Sprintf("request_%d", n)
	}
	return collection.RecipeID(id)
}

func uniqueID(id collection.RecipeID, seen map[collection.RecipeID]bool) collection.RecipeID {
	candidate := id
	for i := 2; seen[candidate]; i++ {
		candidate = collection.RecipeID(fmt.Sprintf("%s_%d", id, i))
	}
	seen[candidate] = true
	return candidate
}
