package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"example.com/canwatch/internal/detect"
)

// NDJSONWriter streams newline-delimited JSON records over an HTTP response,
// flushing after every record so a client following a streamed analysis sees
// each alert as it is raised rather than buffered until the end.
type NDJSONWriter struct {
	mu    sync.Mutex
	enc   *json.Encoder
	flush func()
}

// NewNDJSONWriter wraps an HTTP response for record-at-a-time streaming.
func NewNDJSONWriter(w http.ResponseWriter) *NDJSONWriter {
	n := &NDJSONWriter{enc: json.NewEncoder(w), flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		n.flush = f.Flush
	}
	return n
}

// WriteAlert emits one alert record. Its shape matches detect.SinkFunc, so
// the engine can stream alerts into the response directly.
func (w *NDJSONWriter) WriteAlert(a detect.Alert) error {
	return w.WriteObject(a)
}

// WriteObject emits one JSON record followed by a newline and flushes it to
// the client.
func (w *NDJSONWriter) WriteObject(v any) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	w.flush()
	return nil
}
