package collection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/hitbox/packages/core/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCollection = `
profiles:
  local:
    name: Local
    data:
      host: http://localhost
      id: 1
  staging:
    default: true
    data:
      host: https://staging.example.com
recipes:
  create_user:
    name: Create user
    method: post
    url: "{{host}}/users/{{id}}"
    query:
      mode: "{{mode}}"
      fast: "true"
    headers:
      Accept: application/json
      Content-Type: application/json
    authentication:
      type: basic
      username: "{{username}}"
    body: '{"id":"{{id}}"}'
  login:
    url: "{{host}}/login"
    body:
      form_urlencoded:
        user: "{{username}}"
        password: "{{password}}"
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleCollection))
	require.NoError(t, err)

	require.Len(t, c.Profiles, 2)
	assert.Equal(t, ProfileID("local"), c.Profiles[0].ID)
	assert.Equal(t, "1", c.Profiles[0].Data["id"])

	require.Len(t, c.Recipes, 2)
	create := c.Recipes[0]
	assert.Equal(t, RecipeID("create_user"), create.ID)
	assert.Equal(t, MethodPost, create.Method)
	assert.Equal(t, template.Template("{{host}}/users/{{id}}"), create.URL)
	assert.Equal(t, Params{
		{Name: "mode", Value: "{{mode}}"},
		{Name: "fast", Value: "true"},
	}, create.Query)
	assert.Equal(t, Params{
		{Name: "Accept", Value: "application/json"},
		{Name: "Content-Type", Value: "application/json"},
	}, create.Headers)
	require.NotNil(t, create.Authentication)
	assert.Equal(t, AuthBasic, create.Authentication.Type)
	assert.Nil(t, create.Authentication.Password)
	require.NotNil(t, create.Body)
	require.NotNil(t, create.Body.Raw)
	assert.Equal(t, template.Template(`{"id":"{{id}}"}`), *create.Body.Raw)

	login := c.Recipes[1]
	assert.Equal(t, MethodGet, login.Method, "method defaults to GET")
	assert.True(t, login.Body.IsForm())
	assert.Equal(t, "user", login.Body.FormURLEncoded[0].Name)
	assert.Equal(t, "password", login.Body.FormURLEncoded[1].Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "unknown method",
			yaml:   "recipes:\n  r:\n    method: FETCH\n    url: http://x\n",
			errMsg: `unsupported HTTP method "FETCH"`,
		},
		{
			name:   "missing url",
			yaml:   "recipes:\n  r:\n    method: GET\n",
			errMsg: "url is required",
		},
		{
			name:   "bearer without token",
			yaml:   "recipes:\n  r:\n    url: http://x\n    authentication:\n      type: bearer\n",
			errMsg: "bearer authentication requires a token",
		},
		{
			name:   "two body kinds",
			yaml:   "recipes:\n  r:\n    url: http://x\n    body:\n      raw: a\n      form_multipart:\n        f: b\n",
			errMsg: "exactly one of",
		},
		{
			name:   "duplicate recipe id",
			yaml:   "recipes:\n  r:\n    url: http://x\n  r:\n    url: http://y\n",
			errMsg: `"r"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]byte(sampleCollection)))
	assert.NoError(t, Validate([]byte("")))

	err := Validate([]byte("recipes:\n  r:\n    method: GET\n    bogus: 1\n"))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.NotEmpty(t, schemaErr.Problems)

	err = Validate([]byte("recipes:\n  r:\n    url: x\n    authentication:\n      type: digest\n"))
	assert.ErrorAs(t, err, &schemaErr)
}

func TestLoadAndFind(t *testing.T) {
	dir := t.TempDir()
	_, err := Find(dir)
	assert.Error(t, err)

	path := filepath.Join(dir, "hitbox.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCollection), 0644))

	found, err := Find(dir)
	require.NoError(t, err)
	assert.Equal(t, path, found)

	c, err := Load(found)
	require.NoError(t, err)
	assert.Equal(t, path, c.Path)

	_, err = c.Recipe("create_user")
	assert.NoError(t, err)
	_, err = c.Recipe("missing")
	assert.ErrorIs(t, err, ErrRecipeNotFound)
}

func TestTemplateContext(t *testing.T) {
	c, err := Parse([]byte(sampleCollection))
	require.NoError(t, err)

	t.Run("default profile", func(t *testing.T) {
		ctx, err := c.TemplateContext("", nil)
		require.NoError(t, err)
		assert.Equal(t, "staging", ctx.SelectedProfile())
		assert.Equal(t, "https://staging.example.com", ctx.Profile["host"])
	})

	t.Run("explicit profile with overrides", func(t *testing.T) {
		ctx, err := c.TemplateContext("local", map[string]string{"id": "7"})
		require.NoError(t, err)
		assert.Equal(t, "local", ctx.SelectedProfile())
		assert.Equal(t, "7", ctx.Overrides["id"])
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, err := c.TemplateContext("prod", nil)
		assert.ErrorIs(t, err, ErrProfileNotFound)
	})

	t.Run("no profiles", func(t *testing.T) {
		empty := &Collection{}
		ctx, err := empty.TemplateContext("", nil)
		require.NoError(t, err)
		assert.Equal(t, "", ctx.SelectedProfile())
	})
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" patch ")
	require.NoError(t, err)
	assert.Equal(t, MethodPatch, m)

	_, err = ParseMethod("")
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	c, err := Parse([]byte(sampleCollection))
	require.NoError(t, err)

	data, err := Marshal(c)
	require.NoError(t, err)
	require.NoError(t, Validate(data))

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c.Profiles, again.Profiles)
	assert.Equal(t, c.Recipes, again.Recipes)
}

func TestMarshal_NumericParamsStayStrings(t *testing.T) {
	c := &Collection{Recipes: []Recipe{{
		ID:     "search",
		Method: MethodGet,
		URL:    "http://localhost/search",
		Query:  Params{{Name: "page", Value: "2"}, {Name: "exact", Value: "true"}},
	}}}

	data, err := Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `page: "2"`)
	assert.Contains(t, string(data), `exact: "true"`)
	require.NoError(t, Validate(data))
}
