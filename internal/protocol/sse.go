package protocol

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEWriter writes message/stream events.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer from an HTTP response writer.
// Returns nil if the response writer does not support flushing.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &SSEWriter{w: w, flusher: flusher}
}

// SendChunk sends one chunk event.
func (s *SSEWriter) SendChunk(text string) error {
	return s.sendEvent(EventChunk, Chunk{Text: text})
}

// SendError sends an error event.
func (s *SSEWriter) SendError(e *RPCError) error {
	return s.sendEvent(EventError, e)
}

// SendDone sends the done event marking end of stream.
func (s *SSEWriter) SendDone() error {
	if _, err := fmt.Fprint(s.w, "event: done\ndata: {}\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSEWriter) sendEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
