package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// ExchangeStore persists completed exchanges.
type ExchangeStore interface {
	InsertExchange(ctx context.Context, exchange *Exchange) error
}

// Ticket is a built request bound to the client that must send it. A ticket
// can be sent once.
type Ticket struct {
	Record *RequestRecord

	client  *http.Client
	request *http.Request
	logger  *slog.Logger
	sent    atomic.Bool
}

// Send executes the request and buffers the whole response body. A
// successful exchange is handed to store if one is given; a storage failure
// is logged and does not fail the send.
//
// Network failures are returned as *RequestError with the record and timing
// of the attempt. A second call returns ErrTicketSent.
func (t *Ticket) Send(ctx context.Context, store ExchangeStore) (*Exchange, error) {
	if !t.sent.CompareAndSwap(false, true) {
		return nil, ErrTicketSent
	}

	start := time.Now()
	resp, err := t.client.Do(t.request.WithContext(ctx))
	if err != nil {
		return nil, t.fail(start, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, t.fail(start, err)
	}
	end := time.Now()

	exchange := &Exchange{
		ID:      t.Record.ID,
		Request: t.Record,
		Response: &ResponseRecord{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Body:       body,
		},
		StartTime: start,
		EndTime:   end,
	}
	t.logger.Info("response",
		"request_id", exchange.ID.String(),
		"status", resp.StatusCode,
		"duration", exchange.Duration(),
	)

	if store != nil {
		if err := store.InsertExchange(ctx, exchange); err != nil {
			t.logger.Warn("failed to persist exchange",
				"request_id", exchange.ID.String(),
				"error", err,
			)
		}
	}
	return exchange, nil
}

func (t *Ticket) fail(start time.Time, err error) *RequestError {
	reqErr := &RequestError{
		Request:   t.Record,
		StartTime: start,
		EndTime:   time.Now(),
		Err:       err,
	}
	t.logger.Warn("request failed",
		"request_id", t.Record.ID.String(),
		"error", err,
	)
	return reqErr
}
