// Package watch is a terminal spectator for the live auction channel.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ReaperOAK/player-auction/internal/auction"
)

// Envelope is an event as received over the wire. Data stays raw until the
// model knows which payload the type carries.
type Envelope struct {
	ID        string            `json:"id"`
	Type      auction.EventType `json:"type"`
	Version   int64             `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	State     auction.View      `json:"state"`
	Data      json.RawMessage   `json:"data,omitempty"`
}

// EnvelopeMsg carries one received envelope into the model.
type EnvelopeMsg struct{ Envelope Envelope }

// ConnMsg reports a change of the connection state.
type ConnMsg struct {
	Connected bool
	Err       error
}

// Feed keeps a websocket connection to the auction channel open and turns
// what it reads into model messages.
type Feed struct {
	url    string
	header http.Header
	retry  time.Duration
	dialer *websocket.Dialer
	msgs   chan any
}

// NewFeed returns a Feed for url. A non-empty token is sent as a bearer
// header so admin and team channels can be joined.
func NewFeed(url, token string) *Feed {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &Feed{
		url:    url,
		header: header,
		retry:  2 * time.Second,
		dialer: websocket.DefaultDialer,
		msgs:   make(chan any, 256),
	}
}

// Msgs is the stream consumed by the model.
func (f *Feed) Msgs() <-chan any { return f.msgs }

// Run connects, reads and reconnects until ctx is cancelled. Every new
// connection starts with a snapshot from the server.
func (f *Feed) Run(ctx context.Context) {
	defer close(f.msgs)
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return
		}
		f.emit(ctx, ConnMsg{Connected: false, Err: err})

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.retry):
		}
	}
}

func (f *Feed) session(ctx context.Context) error {
	conn, resp, err := f.dialer.DialContext(ctx, f.url, f.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s", f.url, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	f.emit(ctx, ConnMsg{Connected: true})
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		f.emit(ctx, EnvelopeMsg{Envelope: env})
	}
}

func (f *Feed) emit(ctx context.Context, msg any) {
	select {
	case f.msgs <- msg:
	case <-ctx.Done():
	}
}
