package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	"github.com/abdul-hamid-achik/hitbox/packages/core/template"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/sync/errgroup"
)

// TemplateContext is the render contract the engine builds against.
// *template.Context implements it.
type TemplateContext interface {
	Render(ctx context.Context, t template.Template) ([]byte, error)
	RenderString(ctx context.Context, t template.Template) (string, error)
	// SelectedProfile returns the selected profile ID, or "" for none
	SelectedProfile() string
}

var errRelativeURL = errors.New("relative URL without a scheme")

type queryParam struct {
	name  string
	value string
}

type renderedBody struct {
	data []byte
	// contentType is set for form bodies
	contentType string
}

// renderedRequest holds every resolved facet of a recipe.
type renderedRequest struct {
	url            *url.URL
	query          []queryParam
	headers        http.Header
	authentication *collection.Authentication[string]
	body           *renderedBody
}

// renderAll renders URL, query, headers, authentication and body
// concurrently. All branches are awaited; the first failure wins and partial
// results are dropped.
func renderAll(ctx context.Context, recipe *collection.Recipe, options *BuildOptions, tc TemplateContext) (*renderedRequest, error) {
	var r renderedRequest
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		r.url, err = renderURL(gctx, recipe, tc)
		return err
	})
	g.Go(func() (err error) {
		r.query, err = renderQuery(gctx, recipe, options, tc)
		return err
	})
	g.Go(func() (err error) {
		r.headers, err = renderHeaders(gctx, recipe, options, tc)
		return err
	})
	g.Go(func() (err error) {
		r.authentication, err = renderAuthentication(gctx, recipe, options, tc)
		return err
	})
	g.Go(func() (err error) {
		r.body, err = renderBody(gctx, recipe, options, tc)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &r, nil
}

// renderURL renders the base URL, excluding query parameters.
func renderURL(ctx context.Context, recipe *collection.Recipe, tc TemplateContext) (*url.URL, error) {
	raw, err := tc.RenderString(ctx, recipe.URL)
	if err != nil {
		return nil, facetErr(KindRender, err, "rendering URL")
	}
	u, err := url.Parse(raw)
	if err == nil && !u.IsAbs() {
		err = errRelativeURL
	}
	if err != nil {
		return nil, facetErr(KindInvalidURL, err, "invalid URL `%s`", raw)
	}
	return u, nil
}

// renderQuery renders enabled parameters. Later duplicates overwrite the
// value of earlier ones but keep the first position.
func renderQuery(ctx context.Context, recipe *collection.Recipe, options *BuildOptions, tc TemplateContext) ([]queryParam, error) {
	enabled := make([]collection.Param, 0, len(recipe.Query))
	for _, p := range recipe.Query {
		if !options.queryDisabled(p.Name) {
			enabled = append(enabled, p)
		}
	}

	values := make([]string, len(enabled))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range enabled {
		i, p := i, p
		g.Go(func() error {
			v, err := tc.RenderString(gctx, p.Value)
			if err != nil {
				return facetErr(KindRender, err, "rendering query parameter `%s`", p.Name)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	query := make([]queryParam, 0, len(enabled))
	index := make(map[string]int, len(enabled))
	for i, p := range enabled {
		if j, ok := index[p.Name]; ok {
			query[j].value = values[i]
			continue
		}
		index[p.Name] = len(query)
		query = append(query, queryParam{name: p.Name, value: values[i]})
	}
	return query, nil
}

type header struct {
	name  string
	value string
}

// renderHeaders renders the recipe's own headers. Authentication and
// content type headers are added later.
func renderHeaders(ctx context.Context, recipe *collection.Recipe, options *BuildOptions, tc TemplateContext) (http.Header, error) {
	enabled := make([]collection.Param, 0, len(recipe.Headers))
	for _, h := range recipe.Headers {
		if !options.headerDisabled(h.Name) {
			enabled = append(enabled, h)
		}
	}

	rendered := make([]header, len(enabled))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range enabled {
		i, h := i, h
		g.Go(func() (err error) {
			rendered[i], err = renderHeader(gctx, h, tc)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	headers := make(http.Header, len(rendered))
	for _, h := range rendered {
		headers.Add(h.name, h.value)
	}
	return headers, nil
}

func renderHeader(ctx context.Context, h collection.Param, tc TemplateContext) (header, error) {
	value, err := tc.Render(ctx, h.Value)
	if err != nil {
		return header{}, facetErr(KindRender, err, "rendering header `%s`", h.Name)
	}

	// Edge line breaks are dropped; interior ones fail validation below
	value = TrimBytes(value, isLineBreak)

	if !httpguts.ValidHeaderFieldName(h.Name) {
		return header{}, facetErr(KindInvalidHeader, errors.New("invalid header name"), "encoding header name `%s`", h.Name)
	}
	if !httpguts.ValidHeaderFieldValue(string(value)) {
		return header{}, facetErr(KindInvalidHeader, errors.New("invalid header value"), "encoding value for header `%s`", h.Name)
	}
	return header{name: h.Name, value: string(value)}, nil
}

// renderAuthentication resolves the recipe's authentication. An override in
// the options is used as-is and the recipe's templates are not rendered.
func renderAuthentication(ctx context.Context, recipe *collection.Recipe, options *BuildOptions, tc TemplateContext) (*collection.Authentication[string], error) {
	if options.Authentication != nil {
		return options.Authentication, nil
	}

	auth := recipe.Authentication
	if auth == nil {
		return nil, nil
	}

	switch auth.Type {
	case collection.AuthBasic:
		var username string
		var password *string
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			username, err = tc.RenderString(gctx, auth.Username)
			if err != nil {
				return facetErr(KindRender, err, "rendering username")
			}
			return nil
		})
		if auth.Password != nil {
			g.Go(func() error {
				p, err := tc.RenderString(gctx, *auth.Password)
				if err != nil {
					return facetErr(KindRender, err, "rendering password")
				}
				password = &p
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return collection.BasicAuth(username, password), nil

	case collection.AuthBearer:
		token, err := tc.RenderString(ctx, auth.Token)
		if err != nil {
			return nil, facetErr(KindRender, err, "rendering bearer token")
		}
		return collection.BearerAuth(token), nil

	default:
		return nil, facetErr(KindEncode, fmt.Errorf("unsupported type %q", auth.Type), "rendering authentication")
	}
}

// renderBody resolves the body. A nil result means the request has no body.
func renderBody(ctx context.Context, recipe *collection.Recipe, options *BuildOptions, tc TemplateContext) (*renderedBody, error) {
	if options.Body != nil {
		return &renderedBody{data: options.Body}, nil
	}

	body := recipe.Body
	switch {
	case body == nil:
		return nil, nil
	case body.Raw != nil:
		data, err := tc.Render(ctx, *body.Raw)
		if err != nil {
			return nil, facetErr(KindRender, err, "rendering body")
		}
		return &renderedBody{data: data}, nil
	case body.FormURLEncoded != nil:
		fields, err := renderForm(ctx, body.FormURLEncoded, options, tc)
		if err != nil {
			return nil, err
		}
		return &renderedBody{
			data:        encodeURLEncoded(fields),
			contentType: "application/x-www-form-urlencoded",
		}, nil
	case body.FormMultipart != nil:
		fields, err := renderForm(ctx, body.FormMultipart, options, tc)
		if err != nil {
			return nil, err
		}
		return encodeMultipart(fields)
	}
	return nil, nil
}

// renderForm renders form fields in declared order. Overridden fields take
// the override verbatim and are not rendered.
func renderForm(ctx context.Context, fields collection.Params, options *BuildOptions, tc TemplateContext) ([]queryParam, error) {
	out := make([]queryParam, len(fields))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fields {
		out[i].name = f.Name
		if v, ok := options.FormFields[f.Name]; ok {
			out[i].value = v
			continue
		}
		i, f := i, f
		g.Go(func() error {
			v, err := tc.RenderString(gctx, f.Value)
			if err != nil {
				return facetErr(KindRender, err, "rendering form field `%s`", f.Name)
			}
			out[i].value = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeURLEncoded(fields []queryParam) []byte {
	var b strings.Builder
	for _, f := range fields {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.value))
	}
	return []byte(b.String())
}

func encodeMultipart(fields []queryParam) (*renderedBody, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for _, f := range fields {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return nil, facetErr(KindEncode, err, "encoding multipart field `%s`", f.name)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, facetErr(KindEncode, err, "encoding multipart form")
	}
	return &renderedBody{data: buf.Bytes(), contentType: writer.FormDataContentType()}, nil
}

// appendQuery appends params to any query already present in the URL.
func appendQuery(u *url.URL, params []queryParam) {
	if len(params) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString(u.RawQuery)
	for _, p := range params {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	u.RawQuery = b.String()
}
