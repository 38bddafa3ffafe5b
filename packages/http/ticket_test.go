package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
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

type memoryStore struct {
	mu        sync.Mutex
	exchanges []*Exchange
	err       error
}

func (s *memoryStore) InsertExchange(_ context.Context, exchange *Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.exchanges = append(s.exchanges, exchange)
	return nil
}

func buildTicket(t *testing.T, engine *Engine, rawURL string) *Ticket {
	t.Helper()
	recipe := collection.Recipe{
		ID:      "echo",
		Method:  collection.MethodPost,
		URL:     template.Template(rawURL) + "/echo",
		Query:   params("q", "{{q}}"),
		Headers: params("Content-Type", "application/json"),
		Body:    collection.RawBody(`{"q":"{{q}}"}`),
	}
	ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}),
		template.NewContext("dev", map[string]string{"q": "hello"}))
	require.NoError(t, err)
	return ticket
}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-User-Agent", r.Header.Get("User-Agent"))
		w.Header().Set("X-Query", r.URL.RawQuery)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTicket_Send(t *testing.T) {
	server := echoServer(t)
	engine := newTestEngine(t, nil, WithUserAgent("hitbox/test"))
	ticket := buildTicket(t, engine, server.URL)
	store := &memoryStore{}

	exchange, err := ticket.Send(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, ticket.Record.ID, exchange.ID)
	assert.Same(t, ticket.Record, exchange.Request)
	assert.Equal(t, http.StatusCreated, exchange.Response.StatusCode)
	assert.Equal(t, `{"q":"hello"}`, exchange.Response.BodyString())
	assert.Equal(t, "q=hello", exchange.Response.Header("X-Query"))
	assert.False(t, exchange.EndTime.Before(exchange.StartTime))

	// the user agent is added on the wire only
	assert.Equal(t, "hitbox/test", exchange.Response.Header("X-User-Agent"))
	assert.Empty(t, ticket.Record.Headers.Get("User-Agent"))

	require.Len(t, store.exchanges, 1)
	assert.Same(t, exchange, store.exchanges[0])
}

func TestTicket_Send_RecipeUserAgent(t *testing.T) {
	server := echoServer(t)
	engine := newTestEngine(t, nil, WithUserAgent("hitbox/test"))

	recipe := collection.Recipe{ID: "ua", Method: collection.MethodGet, URL: template.Template(server.URL), Headers: params("User-Agent", "custom")}
	ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}), template.NewContext("", nil))
	require.NoError(t, err)

	exchange, err := ticket.Send(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "custom", exchange.Response.Header("X-User-Agent"))
}

func TestTicket_Send_StoreFailure(t *testing.T) {
	server := echoServer(t)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	engine := newTestEngine(t, nil, WithLogger(logger))
	ticket := buildTicket(t, engine, server.URL)

	exchange, err := ticket.Send(context.Background(), &memoryStore{err: errors.New("disk full")})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, exchange.Response.StatusCode)
	assert.Contains(t, logs.String(), "failed to persist exchange")
	assert.Contains(t, logs.String(), "disk full")
}

func TestTicket_Send_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	engine := newTestEngine(t, nil)
	ticket := buildTicket(t, engine, addr)
	built := *ticket.Record
	store := &memoryStore{}

	exchange, err := ticket.Send(context.Background(), store)
	require.Error(t, err)
	assert.Nil(t, exchange)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, &built, reqErr.Request)
	assert.False(t, reqErr.EndTime.Before(reqErr.StartTime))
	assert.Contains(t, err.Error(), "POST "+addr+"/echo?q=hello")
	assert.Empty(t, store.exchanges)
}

func TestTicket_Send_Twice(t *testing.T) {
	server := echoServer(t)
	engine := newTestEngine(t, nil)
	ticket := buildTicket(t, engine, server.URL)

	_, err := ticket.Send(context.Background(), nil)
	require.NoError(t, err)

	_, err = ticket.Send(context.Background(), nil)
	assert.ErrorIs(t, err, ErrTicketSent)
}

func TestTicket_Send_Canceled(t *testing.T) {
	server := echoServer(t)
	engine := newTestEngine(t, nil)
	ticket := buildTicket(t, engine, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ticket.Send(ctx, nil)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTicket_Send_DangerHosts(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	t.Run("listed host skips verification", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.IgnoreCertificateHosts = []string{u.Hostname()}
		engine := newTestEngine(t, cfg)

		exchange, err := buildTicket(t, engine, server.URL).Send(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, exchange.Response.StatusCode)
	})

	t.Run("other hosts are verified", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.IgnoreCertificateHosts = []string{"example.com"}
		engine := newTestEngine(t, cfg)

		_, err := buildTicket(t, engine, server.URL).Send(context.Background(), nil)
		var reqErr *RequestError
		assert.ErrorAs(t, err, &reqErr)
	})
}

func TestTicket_Send_Redirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tests := []struct {
		name   string
		follow bool
		want   int
	}{
		{"follow", true, http.StatusOK},
		{"no follow", false, http.StatusFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.FollowRedirects = config.BoolPtr(tt.follow)
			engine := newTestEngine(t, cfg)

			exchange, err := buildTicket(t, engine, server.URL).Send(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, exchange.Response.StatusCode)
		})
	}
}

func TestTicket_Send_URLUserinfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Authorization", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)
	withUser := strings.Replace(server.URL, "http://", "http://user:secret@", 1)

	tests := []struct {
		name     string
		auth     *collection.Authentication[template.Template]
		wantAuth string
	}{
		{name: "userinfo becomes basic auth", wantAuth: "Basic dXNlcjpzZWNyZXQ="},
		{name: "recipe auth wins", auth: collection.BearerAuth[template.Template]("tok"), wantAuth: "Bearer tok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipe := collection.Recipe{
				ID:             "userinfo",
				Method:         collection.MethodGet,
				URL:            template.Template(withUser) + "/private",
				Authentication: tt.auth,
			}
			engine := newTestEngine(t, nil)
			ticket, err := engine.Build(context.Background(), NewRequestSeed(recipe, BuildOptions{}),
				template.NewContext("", nil))
			require.NoError(t, err)

			assert.Nil(t, ticket.Record.URL.User)
			assert.Equal(t, server.URL+"/private", ticket.Record.URL.String())
			assert.Equal(t, tt.wantAuth, ticket.Record.Headers.Get("Authorization"))

			exchange, err := ticket.Send(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, ticket.Record.Headers.Get("Authorization"), exchange.Response.Headers.Get("X-Authorization"))
		})
	}
}
