// Package db persists request/response exchanges in SQLite.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitbox/packages/collection"
	hbhttp "github.com/abdul-hamid-achik/hitbox/packages/http"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no exchange has the requested ID.
var ErrNotFound = errors.New("exchange not found")

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id TEXT PRIMARY KEY,
	recipe_id TEXT NOT NULL,
	profile_id TEXT,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	request_headers TEXT NOT NULL,
	request_body BLOB,
	status INTEGER NOT NULL,
	response_headers TEXT NOT NULL,
	response_body BLOB,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exchanges_recipe ON exchanges(recipe_id);
CREATE INDEX IF NOT EXISTS idx_exchanges_start_time ON exchanges(start_time DESC);
`

// fixed width so text order matches time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// CollectionDatabase stores exchanges for a collection.
type CollectionDatabase struct {
	db   *sql.DB
	path string
}

// Open opens the database named by connectionString, creating the file and
// schema when needed. Supported formats:
// - sqlite://path/to/db.sqlite
// - sqlite:./test.db
func Open(connectionString string) (*CollectionDatabase, error) {
	path, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &CollectionDatabase{db: db, path: path}, nil
}

// Path returns the database file path.
func (d *CollectionDatabase) Path() string {
	return d.path
}

// Close closes the database connection
func (d *CollectionDatabase) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// InsertExchange stores a completed exchange.
func (d *CollectionDatabase) InsertExchange(ctx context.Context, exchange *hbhttp.Exchange) error {
	requestHeaders, err := json.Marshal(exchange.Request.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal request headers: %w", err)
	}
	responseHeaders, err := json.Marshal(exchange.Response.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal response headers: %w", err)
	}

	var profileID sql.NullString
	if exchange.Request.ProfileID != "" {
		profileID = sql.NullString{String: string(exchange.Request.ProfileID), Valid: true}
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO exchanges (
			id, recipe_id, profile_id, method, url, request_headers, request_body,
			status, response_headers, response_body, start_time, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exchange.ID.String(),
		string(exchange.Request.RecipeID),
		profileID,
		string(exchange.Request.Method),
		exchange.Request.URL.String(),
		string(requestHeaders),
		exchange.Request.Body,
		exchange.Response.StatusCode,
		string(responseHeaders),
		exchange.Response.Body,
		exchange.StartTime.UTC().Format(timeLayout),
		exchange.EndTime.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert exchange: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, recipe_id, COALESCE(profile_id, ''), method, url, request_headers, request_body,
	       status, response_headers, response_body, start_time, end_time
	FROM exchanges`

// GetExchange loads a single exchange by ID.
func (d *CollectionDatabase) GetExchange(ctx context.Context, id hbhttp.RequestID) (*hbhttp.Exchange, error) {
	row := d.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id.String())
	exchange, err := scanExchange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return exchange, err
}

// ExchangeFilter narrows ListExchanges. Zero values match everything.
type ExchangeFilter struct {
	RecipeID  collection.RecipeID
	ProfileID collection.ProfileID
	// Limit caps the number of results; 0 means no limit
	Limit int
}

// ListExchanges returns matching exchanges, most recent first.
func (d *CollectionDatabase) ListExchanges(ctx context.Context, filter ExchangeFilter) ([]*hbhttp.Exchange, error) {
	var (
		where []string
		args  []any
	)
	if filter.RecipeID != "" {
		where = append(where, "recipe_id = ?")
		args = append(args, string(filter.RecipeID))
	}
	if filter.ProfileID != "" {
		where = append(where, "profile_id = ?")
		args = append(args, string(filter.ProfileID))
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []*hbhttp.Exchange
	for rows.Next() {
		exchange, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, exchange)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return exchanges, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExchange(s scanner) (*hbhttp.Exchange, error) {
	var (
		id, recipeID, profileID, method, rawURL string
		requestHeaders, responseHeaders         string
		requestBody, responseBody               []byte
		status                                  int
		startTime, endTime                      string
	)
	err := s.Scan(&id, &recipeID, &profileID, &method, &rawURL, &requestHeaders, &requestBody,
		&status, &responseHeaders, &responseBody, &startTime, &endTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan exchange: %w", err)
	}

	requestID, err := hbhttp.ParseRequestID(id)
	if err != nil {
		return nil, fmt.Errorf("exchange %s: invalid id: %w", id, err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("exchange %s: invalid url: %w", id, err)
	}

	var reqHeaders, respHeaders http.Header
	if err := json.Unmarshal([]byte(requestHeaders), &reqHeaders); err != nil {
		return nil, fmt.Errorf("exchange %s: request headers: %w", id, err)
	}
	if err := json.Unmarshal([]byte(responseHeaders), &respHeaders); err != nil {
		return nil, fmt.Errorf("exchange %s: response headers: %w", id, err)
	}

	start, err := time.Parse(timeLayout, startTime)
	if err != nil {
		return nil, fmt.Errorf("exchange %s: start time: %w", id, err)
	}
	end, err := time.Parse(timeLayout, endTime)
	if err != nil {
		return nil, fmt.Errorf("exchange %s: end time: %w", id, err)
	}

	return &hbhttp.Exchange{
		ID: requestID,
		Request: &hbhttp.RequestRecord{
			ID:        requestID,
			ProfileID: collection.ProfileID(profileID),
			RecipeID:  collection.RecipeID(recipeID),
			Method:    collection.Method(method),
			URL:       u,
			Headers:   reqHeaders,
			Body:      requestBody,
		},
		Response: &hbhttp.ResponseRecord{
			StatusCode: status,
			Headers:    respHeaders,
			Body:       responseBody,
		},
		StartTime: start,
		EndTime:   end,
	}, nil
}

// parseConnectionString returns the sqlite file path of connStr.
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)

	var path string
	switch {
	case strings.HasPrefix(connStr, "sqlite://"):
		path = strings.TrimPrefix(connStr, "sqlite://")
	case strings.HasPrefix(connStr, "sqlite:"):
		path = strings.TrimPrefix(connStr, "sqlite:")
	default:
		return "", fmt.Errorf("unsupported database connection string %q: only sqlite is supported", connStr)
	}
	if path == "" {
		return "", fmt.Errorf("missing database path in %q", connStr)
	}
	return path, nil
}

var _ hbhttp.ExchangeStore = (*CollectionDatabase)(nil)
