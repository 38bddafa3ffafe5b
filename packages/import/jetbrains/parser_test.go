package jetbrains

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = `@host = https://httpbin.org
@token=abc123

### Get thing
GET {{host}}/get?page=2&q=a%20b HTTP/1.1
Accept: application/json

// Comment
###
# @name create_user
POST {{host}}/post
Content-Type: application/json
Authorization: Bearer {{token}}

{
    "data": "my data"
}

> {%
    client.global.set("id", response.body.id);
%}

### Login
POST {{host}}/login
Content-Type: application/x-www-form-urlencoded

user=admin&password={{$processEnv PASSWORD}}
`

func TestParse(t *testing.T) {
	file, err := Parse(sampleFile, "api.http")
	require.NoError(t, err)

	require.Len(t, file.Variables, 2)
	assert.Equal(t, &Variable{Name: "host", Value: "https://httpbin.org", Line: 1}, file.Variables[0])
	assert.Equal(t, &Variable{Name: "token", Value: "abc123", Line: 2}, file.Variables[1])

	require.Len(t, file.Requests, 3)

	get := file.Requests[0]
	assert.Equal(t, "Get thing", get.Name)
	assert.Equal(t, "GET", get.Method)
	assert.Equal(t, "{{host}}/get?page=2&q=a%20b", get.URL)
	assert.Equal(t, 5, get.Line)
	require.Len(t, get.Headers, 1)
	assert.Equal(t, "Accept", get.Headers[0].Key)
	assert.Equal(t, "application/json", get.Headers[0].Value)
	assert.Empty(t, get.Body)

	create := file.Requests[1]
	assert.Equal(t, "create_user", create.Name)
	assert.Equal(t, "POST", create.Method)
	require.Len(t, create.Headers, 2)
	assert.Equal(t, "Bearer {{token}}", create.Headers[1].Value)
	assert.Equal(t, "{\n    \"data\": \"my data\"\n}", create.Body)

	login := file.Requests[2]
	assert.Equal(t, "Login", login.Name)
	assert.Equal(t, "user=admin&password={{$processEnv PASSWORD}}", login.Body)
}

func TestParse_RequestLine(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantMethod string
		wantURL    string
	}{
		{name: "bare target is GET", input: "https://example.com", wantMethod: "GET", wantURL: "https://example.com"},
		{name: "method and version", input: "DELETE https://example.com/1 HTTP/2", wantMethod: "DELETE", wantURL: "https://example.com/1"},
		{name: "no separator", input: "PUT {{host}}/x", wantMethod: "PUT", wantURL: "{{host}}/x"},
		{name: "continued query", input: "GET https://example.com/search\n    ?q=go\n    &page=2", wantMethod: "GET", wantURL: "https://example.com/search?q=go&page=2"},
		{name: "CRLF line endings", input: "GET https://example.com\r\nAccept: */*\r\n", wantMethod: "GET", wantURL: "https://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := Parse(tt.input, "")
			require.NoError(t, err)
			require.Len(t, file.Requests, 1)
			assert.Equal(t, tt.wantMethod, file.Requests[0].Method)
			assert.Equal(t, tt.wantURL, file.Requests[0].URL)
		})
	}
}

func TestParse_NameAnnotations(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "# @name first\nGET http://a", want: "first"},
		{input: "// @name second\nGET http://a", want: "second"},
		{input: "# @name=third\nGET http://a", want: "third"},
		{input: "### Separator name\nGET http://a", want: "Separator name"},
		{input: "### Separator\n# @name annotated\nGET http://a", want: "annotated"},
		{input: "# @named nope\nGET http://a", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			file, err := Parse(tt.input, "")
			require.NoError(t, err)
			require.Len(t, file.Requests, 1)
			assert.Equal(t, tt.want, file.Requests[0].Name)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{name: "bad variable", input: "@1bad = x\nGET http://a", wantLine: 1},
		{name: "bad header", input: "GET http://a\nnot a header", wantLine: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, "bad.http")
			require.Error(t, err)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.wantLine, parseErr.Line)
			assert.Contains(t, err.Error(), "bad.http:")
		})
	}
}

func TestParse_Empty(t *testing.T) {
	file, err := Parse("\n// only comments\n###\n", "")
	require.NoError(t, err)
	assert.Empty(t, file.Requests)
	assert.Empty(t, file.Variables)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.http")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0644))

	file, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, file.Path)
	assert.Len(t, file.Requests, 3)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.http"))
	assert.Error(t, err)
}
