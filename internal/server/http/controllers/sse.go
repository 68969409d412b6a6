package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rzbill/ensdb/internal/recordlog"
)

// sseSink writes records as Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
	r *http.Request
}

func newSSESink(w http.ResponseWriter, r *http.Request) sseSink {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return sseSink{w: w, r: r}
}

// Send writes one record as a data event.
func (s sseSink) Send(rec recordlog.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	_, err = s.w.Write([]byte("\n\n"))
	return err
}

// Event writes a named event with a JSON body.
func (s sseSink) Event(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.w.Write([]byte("event: " + name + "\ndata: " + string(b) + "\n\n"))
	return err
}

// Context returns the request context for cancellation.
func (s sseSink) Context() context.Context {
	return s.r.Context()
}

// Flush pushes buffered events to the client.
func (s sseSink) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}
