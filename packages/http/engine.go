package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	"github.com/abdul-hamid-achik/hitbox/packages/core/config"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultUserAgent is sent when no user agent is configured
	DefaultUserAgent = "hitbox"
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Engine builds recipes into tickets. It holds two clients: a standard one
// and a "danger" one that skips certificate validation, used only for hosts
// listed in the configuration. An Engine is immutable after construction and
// safe for concurrent use.
type Engine struct {
	client          *http.Client
	dangerClient    *http.Client
	dangerHostnames map[string]struct{}
	logger          *slog.Logger
	userAgent       string
	transport       *http.Transport
}

type EngineOption func(*Engine)

// WithLogger sets the logger used for build and send events.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithUserAgent replaces the user agent sent by both clients.
func WithUserAgent(userAgent string) EngineOption {
	return func(e *Engine) {
		e.userAgent = userAgent
	}
}

// WithTransport sets the base transport. Each client gets its own clone.
func WithTransport(t *http.Transport) EngineOption {
	return func(e *Engine) {
		e.transport = t
	}
}

// NewEngine creates an engine from cfg. A nil cfg uses the defaults.
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	e := &Engine{
		dangerHostnames: make(map[string]struct{}, len(cfg.IgnoreCertificateHosts)),
		logger:          slog.Default(),
		userAgent:       DefaultUserAgent,
	}
	for _, host := range cfg.IgnoreCertificateHosts {
		e.dangerHostnames[strings.ToLower(host)] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}

	base := e.transport
	if base == nil {
		base = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        DefaultMaxIdleConns,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		}
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		base = base.Clone()
		base.Proxy = http.ProxyURL(proxyURL)
	}

	followRedirects := cfg.GetFollowRedirects()
	maxRedirects := cfg.GetMaxRedirects()
	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !followRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	standard := base.Clone()
	danger := base.Clone()
	if danger.TLSClientConfig == nil {
		danger.TLSClientConfig = &tls.Config{}
	}
	danger.TLSClientConfig.InsecureSkipVerify = true

	e.client = &http.Client{
		Transport:     &userAgentTransport{base: standard, userAgent: e.userAgent},
		CheckRedirect: redirectPolicy,
	}
	e.dangerClient = &http.Client{
		Transport:     &userAgentTransport{base: danger, userAgent: e.userAgent},
		CheckRedirect: redirectPolicy,
	}
	return e, nil
}

// clientFor picks the client for a resolved URL. Hosts match exactly, ignoring
// case, with no wildcard or suffix matching. An empty host gets the standard
// client.
func (e *Engine) clientFor(u *url.URL) *http.Client {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return e.client
	}
	if _, ok := e.dangerHostnames[host]; ok {
		return e.dangerClient
	}
	return e.client
}

// Build renders every facet of the seed's recipe and returns a ticket ready
// to send. No network I/O happens here.
func (e *Engine) Build(ctx context.Context, seed RequestSeed, tc TemplateContext) (*Ticket, error) {
	profileID := tc.SelectedProfile()
	e.logger.Info("build request",
		"request_id", seed.ID.String(),
		"recipe", seed.Recipe.ID,
		"profile", profileID,
	)

	rendered, err := renderAll(ctx, seed.Recipe, &seed.Options, tc)
	if err != nil {
		return nil, e.buildError(seed, profileID, err)
	}

	req, body, err := e.newNativeRequest(ctx, seed.Recipe.Method, rendered)
	if err != nil {
		return nil, e.buildError(seed, profileID, err)
	}

	return &Ticket{
		Record:  newRequestRecord(seed, profileID, req, body),
		client:  e.clientFor(req.URL),
		request: req,
		logger:  e.logger,
	}, nil
}

// BuildURL renders only the URL and query parameters.
func (e *Engine) BuildURL(ctx context.Context, seed RequestSeed, tc TemplateContext) (*url.URL, error) {
	var (
		u     *url.URL
		query []queryParam
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		u, err = renderURL(gctx, seed.Recipe, tc)
		return err
	})
	g.Go(func() (err error) {
		query, err = renderQuery(gctx, seed.Recipe, &seed.Options, tc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, e.buildError(seed, tc.SelectedProfile(), err)
	}

	appendQuery(u, query)
	return u, nil
}

// BuildBody renders only the body. A nil result means the recipe has none.
func (e *Engine) BuildBody(ctx context.Context, seed RequestSeed, tc TemplateContext) ([]byte, error) {
	body, err := renderBody(ctx, seed.Recipe, &seed.Options, tc)
	if err != nil {
		return nil, e.buildError(seed, tc.SelectedProfile(), err)
	}
	if body == nil {
		return nil, nil
	}
	return body.data, nil
}

func (e *Engine) buildError(seed RequestSeed, profileID string, err error) error {
	buildErr := newBuildError(seed, profileID, err)
	e.logger.Debug("request could not be built",
		"request_id", seed.ID.String(),
		"kind", buildErr.Kind().String(),
		"error", err,
	)
	return buildErr
}

// newNativeRequest hands the rendered facets to net/http. Query encoding and
// the Authorization header are produced by the standard library; the record
// is later copied from the result so both views agree.
func (e *Engine) newNativeRequest(ctx context.Context, method collection.Method, r *renderedRequest) (*http.Request, []byte, error) {
	u := *r.url
	appendQuery(&u, r.query)

	var (
		body   []byte
		reader io.Reader
	)
	if r.body != nil {
		body = r.body.data
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, string(method), u.String(), reader)
	if err != nil {
		return nil, nil, facetErr(KindInvalidURL, err, "invalid URL `%s`", u.String())
	}
	req.Header = r.headers

	if r.body != nil && r.body.contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", r.body.contentType)
	}

	switch auth := r.authentication; {
	case auth == nil:
	case auth.Type == collection.AuthBasic:
		password := ""
		if auth.Password != nil {
			password = *auth.Password
		}
		req.SetBasicAuth(auth.Username, password)
	case auth.Type == collection.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	}

	// Userinfo moves into basic auth so the record matches the wire. An
	// explicit Authorization header wins.
	if user := req.URL.User; user != nil {
		if req.Header.Get("Authorization") == "" {
			password, _ := user.Password()
			req.SetBasicAuth(user.Username(), password)
		}
		req.URL.User = nil
	}

	return req, body, nil
}
