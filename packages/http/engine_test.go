package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	"github.com/abdul-hamid-achik/hitbox/packages/core/config"
	"github.com/abdul-hamid-achik/hitbox/packages/core/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingContext wraps a real template context and records every template
// it is asked to render.
type recordingContext struct {
	*template.Context

	mu       sync.Mutex
	rendered []template.Template
}

func newRecordingContext(profile map[string]string) *recordingContext {
	return &recordingContext{Context: template.NewContext("dev", profile)}
}

func (c *recordingContext) record(t template.Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rendered = append(c.rendered, t)
}

func (c *recordingContext) Render(ctx context.Context, t template.Template) ([]byte, error) {
	c.record(t)
	return c.Context.Render(ctx, t)
}

func (c *recordingContext) RenderString(ctx context.Context, t template.Template) (string, error) {
	c.record(t)
	return c.Context.RenderString(ctx, t)
}

func (c *recordingContext) Rendered() []template.Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]template.Template{}, c.rendered...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, cfg *config.Config, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithLogger(quietLogger())}, opts...)
	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	return e
}

func params(pairs ...string) collection.Params {
	out := make(collection.Params, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, collection.Param{Name: pairs[i], Value: template.Template(pairs[i+1])})
	}
	return out
}

var testProfile = map[string]string{
	"host": "http://localhost",
	"id":   "1",
	"mode": "sudo",
}

func userRecipe() collection.Recipe {
	return collection.Recipe{
		ID:      "create_user",
		Method:  collection.MethodPost,
		URL:     "{{host}}/users/{{id}}",
		Query:   params("mode", "{{mode}}"),
		Headers: params("Accept", "application/json"),
		Body:    collection.RawBody(`{"id":"{{id}}"}`),
	}
}

func tmplPtr(t template.Template) *template.Template {
	return &t
}

func strPtr(s string) *string {
	return &s
}

func TestEngine_Build(t *testing.T) {
	engine := newTestEngine(t, nil)
	seed := NewRequestSeed(userRecipe(), BuildOptions{})

	ticket, err := engine.Build(context.Background(), seed, template.NewContext("dev", testProfile))
	require.NoError(t, err)

	record := ticket.Record
	assert.Equal(t, seed.ID, record.ID)
	assert.Equal(t, collection.RecipeID("create_user"), record.RecipeID)
	assert.Equal(t, collection.ProfileID("dev"), record.ProfileID)
	assert.Equal(t, collection.MethodPost, record.Method)
	assert.Equal(t, "http://localhost/users/1?mode=sudo", record.URL.String())
	assert.Equal(t, "application/json", record.Headers.Get("Accept"))
	assert.Equal(t, []byte(`{"id":"1"}`), record.Body)
}

func TestEngine_Build_RecordMatchesNativeRequest(t *testing.T) {
	recipe := userRecipe()
	recipe.Query = params("mode", "{{mode}}", "q", "a b&c")
	recipe.Authentication = collection.BasicAuth[template.Template]("user", tmplPtr("hunter2"))

	engine := newTestEngine(t, nil)
	ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}), template.NewContext("dev", testProfile))
	require.NoError(t, err)

	req := ticket.request
	assert.Equal(t, req.URL.String(), ticket.Record.URL.String())
	assert.Equal(t, "mode=sudo&q=a+b%26c", ticket.Record.URL.RawQuery)
	assert.Equal(t, req.Method, string(ticket.Record.Method))
	assert.Equal(t, req.Header, ticket.Record.Headers)

	require.NotNil(t, req.GetBody)
	body, err := req.GetBody()
	require.NoError(t, err)
	sent, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, ticket.Record.Body, sent)

	// the record is a copy; the native request cannot change it
	req.Header.Set("X-Mutated", "1")
	assert.Empty(t, ticket.Record.Headers.Get("X-Mutated"))
}

func TestEngine_Build_InvalidURL(t *testing.T) {
	recipe := collection.Recipe{ID: "broken", Method: collection.MethodGet, URL: "{{url}}"}

	engine := newTestEngine(t, nil)
	ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}),
		template.NewContext("dev", map[string]string{"url": "not a url"}))

	require.Error(t, err)
	assert.Nil(t, ticket)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, collection.RecipeID("broken"), buildErr.RecipeID)
	assert.Equal(t, collection.ProfileID("dev"), buildErr.ProfileID)
	assert.Equal(t, KindInvalidURL, buildErr.Kind())
	assert.Contains(t, err.Error(), "recipe `broken`")
	assert.Contains(t, err.Error(), "not a url")
}

func TestEngine_Build_RenderErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *collection.Recipe)
		context string
	}{
		{
			name:    "url",
			mutate:  func(r *collection.Recipe) { r.URL = "{{missing}}" },
			context: "rendering URL",
		},
		{
			name:    "query",
			mutate:  func(r *collection.Recipe) { r.Query = params("page", "{{missing}}") },
			context: "rendering query parameter `page`",
		},
		{
			name:    "header",
			mutate:  func(r *collection.Recipe) { r.Headers = params("X-Token", "{{missing}}") },
			context: "rendering header `X-Token`",
		},
		{
			name: "username",
			mutate: func(r *collection.Recipe) {
				r.Authentication = collection.BasicAuth[template.Template]("{{missing}}", nil)
			},
			context: "rendering username",
		},
		{
			name: "password",
			mutate: func(r *collection.Recipe) {
				r.Authentication = collection.BasicAuth[template.Template]("user", tmplPtr("{{missing}}"))
			},
			context: "rendering password",
		},
		{
			name: "bearer",
			mutate: func(r *collection.Recipe) {
				r.Authentication = collection.BearerAuth[template.Template]("{{missing}}")
			},
			context: "rendering bearer token",
		},
		{
			name:    "body",
			mutate:  func(r *collection.Recipe) { r.Body = collection.RawBody("{{missing}}") },
			context: "rendering body",
		},
		{
			name: "form field",
			mutate: func(r *collection.Recipe) {
				r.Body = &collection.RecipeBody{FormURLEncoded: params("name", "{{missing}}")}
			},
			context: "rendering form field `name`",
		},
	}

	engine := newTestEngine(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipe := userRecipe()
			tt.mutate(&recipe)

			_, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}), template.NewContext("dev", testProfile))
			require.Error(t, err)

			var buildErr *BuildError
			require.ErrorAs(t, err, &buildErr)
			assert.Equal(t, KindRender, buildErr.Kind())
			assert.Contains(t, err.Error(), tt.context)
			assert.ErrorIs(t, err, template.ErrUnknownField)
		})
	}
}

func TestEngine_Build_NoProfile(t *testing.T) {
	recipe := collection.Recipe{ID: "r", URL: "{{missing}}"}
	engine := newTestEngine(t, nil)

	_, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}), template.NewContext("", nil))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "with profile")
}

func TestEngine_Build_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := newTestEngine(t, nil)
	_, err := engine.Build(ctx, NewRequestSeed(userRecipe(), BuildOptions{}), template.NewContext("dev", testProfile))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Build_DisabledFields(t *testing.T) {
	recipe := userRecipe()
	recipe.Query = params("mode", "{{mode}}", "debug", "{{missing}}")
	recipe.Headers = params("Accept", "application/json", "X-Broken", "{{missing}}")

	options := BuildOptions{
		DisabledHeaders:         []string{"x-broken"},
		DisabledQueryParameters: []string{"debug"},
	}
	tc := newRecordingContext(testProfile)

	engine := newTestEngine(t, nil)
	ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, options), tc)
	require.NoError(t, err)

	assert.Equal(t, "mode=sudo", ticket.Record.URL.RawQuery)
	assert.Empty(t, ticket.Record.Headers.Values("X-Broken"))
	assert.NotContains(t, tc.Rendered(), template.Template("{{missing}}"))
}

func TestEngine_Build_QueryParameterNamesExact(t *testing.T) {
	recipe := userRecipe()
	recipe.Query = params("Mode", "upper", "mode", "lower")

	engine := newTestEngine(t, nil)
	ticket, err := engine.Build(context.Background(),
		NewRequestSeed(recipe, BuildOptions{DisabledQueryParameters: []string{"mode"}}),
		template.NewContext("dev", testProfile))
	require.NoError(t, err)
	assert.Equal(t, "Mode=upper", ticket.Record.URL.RawQuery)
}

func TestEngine_Build_DuplicateQueryParameters(t *testing.T) {
	recipe := userRecipe()
	recipe.URL = "http://localhost/search?fixed=0"
	recipe.Query = params("a", "1", "b", "2", "a", "3")

	engine := newTestEngine(t, nil)
	ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}), template.NewContext("dev", testProfile))
	require.NoError(t, err)
	assert.Equal(t, "fixed=0&a=3&b=2", ticket.Record.URL.RawQuery)
}

func TestEngine_Build_HeaderLineBreaks(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "trailing newline", value: "abc\n", want: "abc"},
		{name: "both edges", value: "\r\n\nabc\r\n", want: "abc"},
		{name: "interior space kept", value: "\na b\n", want: "a b"},
		{name: "only line breaks", value: "\r\n", want: ""},
		{name: "interior newline rejected", value: "a\nb", wantErr: true},
	}

	engine := newTestEngine(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipe := userRecipe()
			recipe.Headers = params("X-Token", "{{token}}")
			profile := map[string]string{"host": "http://localhost", "id": "1", "mode": "m", "token": tt.value}

			ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}), template.NewContext("dev", profile))
			if tt.wantErr {
				var buildErr *BuildError
				require.ErrorAs(t, err, &buildErr)
				assert.Equal(t, KindInvalidHeader, buildErr.Kind())
				assert.Contains(t, err.Error(), "X-Token")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, ticket.Record.Headers.Values("X-Token"))
		})
	}
}

func TestEngine_Build_InvalidHeaderName(t *testing.T) {
	recipe := userRecipe()
	recipe.Headers = params("Bad Header", "x")

	engine := newTestEngine(t, nil)
	_, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}), template.NewContext("dev", testProfile))

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, KindInvalidHeader, buildErr.Kind())
	assert.Contains(t, err.Error(), "encoding header name `Bad Header`")
}

func TestEngine_Build_RepeatedHeaders(t *testing.T) {
	recipe := userRecipe()
	recipe.Headers = params("Accept", "application/json", "accept", "text/plain")

	engine := newTestEngine(t, nil)
	ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}), template.NewContext("dev", testProfile))
	require.NoError(t, err)
	assert.Equal(t, []string{"application/json", "text/plain"}, ticket.Record.Headers.Values("Accept"))
}

func TestEngine_Build_Authentication(t *testing.T) {
	tests := []struct {
		name     string
		recipe   *collection.Authentication[template.Template]
		override *collection.Authentication[string]
		want     string
	}{
		{
			name:   "none",
			recipe: nil,
			want:   "",
		},
		{
			name:   "basic",
			recipe: collection.BasicAuth[template.Template]("user", tmplPtr("{{password}}")),
			want:   "Basic dXNlcjpodW50ZXIy",
		},
		{
			name:   "basic without password",
			recipe: collection.BasicAuth[template.Template]("user", nil),
			want:   "Basic dXNlcjo=",
		},
		{
			name:   "bearer",
			recipe: collection.BearerAuth[template.Template]("{{token}}"),
			want:   "Bearer t0k3n",
		},
		{
			name:     "override skips recipe authentication",
			recipe:   collection.BasicAuth[template.Template]("{{missing}}", nil),
			override: collection.BearerAuth("xyz"),
			want:     "Bearer xyz",
		},
		{
			name:     "basic override",
			recipe:   collection.BearerAuth[template.Template]("{{token}}"),
			override: collection.BasicAuth("user", strPtr("hunter2")),
			want:     "Basic dXNlcjpodW50ZXIy",
		},
	}

	profile := map[string]string{"password": "hunter2", "token": "t0k3n"}
	engine := newTestEngine(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipe := collection.Recipe{ID: "auth", Method: collection.MethodGet, URL: "http://localhost/", Authentication: tt.recipe}
			options := BuildOptions{Authentication: tt.override}

			ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, options), template.NewContext("dev", profile))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ticket.Record.Headers.Get("Authorization"))
		})
	}
}

func TestEngine_Build_Bodies(t *testing.T) {
	tests := []struct {
		name        string
		body        *collection.RecipeBody
		headers     collection.Params
		options     BuildOptions
		want        string
		contentType string
	}{
		{
			name: "no body",
			body: nil,
		},
		{
			name:    "override",
			body:    collection.RawBody("{{missing}}"),
			options: BuildOptions{Body: []byte("replaced")},
			want:    "replaced",
		},
		{
			name:        "urlencoded",
			body:        &collection.RecipeBody{FormURLEncoded: params("name", "{{name}}", "tags", "a&b")},
			want:        "name=Jane+Doe&tags=a%26b",
			contentType: "application/x-www-form-urlencoded",
		},
		{
			name:        "urlencoded field override",
			body:        &collection.RecipeBody{FormURLEncoded: params("name", "{{missing}}", "tags", "x")},
			options:     BuildOptions{FormFields: map[string]string{"name": "override"}},
			want:        "name=override&tags=x",
			contentType: "application/x-www-form-urlencoded",
		},
		{
			name:        "recipe content type wins",
			body:        &collection.RecipeBody{FormURLEncoded: params("a", "1")},
			headers:     params("Content-Type", "text/plain"),
			want:        "a=1",
			contentType: "text/plain",
		},
	}

	engine := newTestEngine(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipe := collection.Recipe{ID: "body", Method: collection.MethodPost, URL: "http://localhost/", Headers: tt.headers, Body: tt.body}

			ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, tt.options),
				template.NewContext("dev", map[string]string{"name": "Jane Doe"}))
			require.NoError(t, err)

			if tt.body == nil {
				assert.Nil(t, ticket.Record.Body)
				return
			}
			assert.Equal(t, tt.want, string(ticket.Record.Body))
			assert.Equal(t, tt.contentType, ticket.Record.Headers.Get("Content-Type"))
		})
	}
}

func TestEngine_Build_Multipart(t *testing.T) {
	recipe := collection.Recipe{
		ID:     "upload",
		Method: collection.MethodPost,
		URL:    "http://localhost/upload",
		Body:   &collection.RecipeBody{FormMultipart: params("name", "{{name}}", "kind", "avatar")},
	}

	engine := newTestEngine(t, nil)
	ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}),
		template.NewContext("dev", map[string]string{"name": "Jane"}))
	require.NoError(t, err)

	contentType := ticket.Record.Headers.Get("Content-Type")
	assert.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="))

	req, err := http.NewRequest(http.MethodPost, "http://localhost/upload", strings.NewReader(string(ticket.Record.Body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	require.NoError(t, req.ParseMultipartForm(1<<20))
	assert.Equal(t, "Jane", req.FormValue("name"))
	assert.Equal(t, "avatar", req.FormValue("kind"))
}

func TestEngine_BuildURL(t *testing.T) {
	recipe := userRecipe()
	recipe.Headers = params("X-Token", "{{header_only}}")
	recipe.Authentication = collection.BearerAuth[template.Template]("{{auth_only}}")
	recipe.Body = collection.RawBody("{{body_only}}")
	tc := newRecordingContext(testProfile)

	engine := newTestEngine(t, nil)
	u, err := engine.BuildURL(context.Background(), NewRequestSeed(recipe, BuildOptions{}), tc)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/users/1?mode=sudo", u.String())

	assert.ElementsMatch(t, []template.Template{"{{host}}/users/{{id}}", "{{mode}}"}, tc.Rendered())
}

func TestEngine_BuildURL_Error(t *testing.T) {
	recipe := userRecipe()
	recipe.Query = params("mode", "{{missing}}")

	engine := newTestEngine(t, nil)
	_, err := engine.BuildURL(context.Background(), NewRequestSeed(recipe, BuildOptions{}), template.NewContext("dev", testProfile))

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, err.Error(), "rendering query parameter `mode`")
}

func TestEngine_BuildBody(t *testing.T) {
	recipe := userRecipe()
	recipe.URL = "{{url_only}}"
	recipe.Headers = params("X-Token", "{{header_only}}")
	recipe.Authentication = collection.BearerAuth[template.Template]("{{auth_only}}")
	tc := newRecordingContext(testProfile)

	engine := newTestEngine(t, nil)
	body, err := engine.BuildBody(context.Background(), NewRequestSeed(recipe, BuildOptions{}), tc)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"1"}`), body)
	assert.Equal(t, []template.Template{`{"id":"{{id}}"}`}, tc.Rendered())

	recipe.Body = nil
	body, err = engine.BuildBody(context.Background(), NewRequestSeed(recipe, BuildOptions{}), tc)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestEngine_ClientFor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.IgnoreCertificateHosts = []string{"h1", "H3"}
	engine := newTestEngine(t, cfg)

	tests := []struct {
		url    string
		danger bool
	}{
		{"https://h1/x", true},
		{"https://H1/x", true},
		{"https://h3/x", true},
		{"https://h1:8443/x", true},
		{"https://h2/x", false},
		{"https://sub.h1/x", false},
		{"https://h1.example.com/x", false},
		{"file:///x", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)

			if tt.danger {
				assert.Same(t, engine.dangerClient, engine.clientFor(u))
			} else {
				assert.Same(t, engine.client, engine.clientFor(u))
			}
		})
	}
}

func TestNewEngine(t *testing.T) {
	t.Run("danger client skips verification", func(t *testing.T) {
		engine := newTestEngine(t, nil, WithTransport(&http.Transport{MaxIdleConns: 3}))

		standard := engine.client.Transport.(*userAgentTransport).base.(*http.Transport)
		danger := engine.dangerClient.Transport.(*userAgentTransport).base.(*http.Transport)
		assert.Equal(t, 3, standard.MaxIdleConns)
		assert.Equal(t, 3, danger.MaxIdleConns)
		assert.True(t, standard.TLSClientConfig == nil || !standard.TLSClientConfig.InsecureSkipVerify)
		assert.True(t, danger.TLSClientConfig.InsecureSkipVerify)
	})

	t.Run("invalid proxy", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Proxy = "://bad"
		_, err := NewEngine(cfg)
		assert.Error(t, err)
	})

	t.Run("user agent", func(t *testing.T) {
		engine := newTestEngine(t, nil, WithUserAgent("hitbox/test"))
		assert.Equal(t, "hitbox/test", engine.client.Transport.(*userAgentTransport).userAgent)
		assert.Equal(t, "hitbox/test", engine.dangerClient.Transport.(*userAgentTransport).userAgent)
	})
}

func TestBuildError_Kind(t *testing.T) {
	inner := facetErr(KindInvalidHeader, errors.New("bad"), "encoding header")
	outer := facetErr(KindRender, inner, "rendering")
	err := &BuildError{RecipeID: "r", Err: outer}

	assert.Equal(t, KindInvalidHeader, err.Kind())
	assert.Equal(t, ErrorKind(0), (&BuildError{Err: errors.New("plain")}).Kind())
	assert.Equal(t, "building request for recipe `r`: rendering: encoding header: bad", err.Error())
}
