// Package sse writes Server-Sent Events to an HTTP response. Event payloads
// here are HTML fragments and JSON, so multi-line data is split into one
// "data:" line per line as the EventSource format requires.
package sse

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// writeTimeout bounds each event write so a stalled client cannot pin the
// handler goroutine.
const writeTimeout = 60 * time.Second

// Stream is an open event stream. It is not safe for concurrent use; one
// handler goroutine owns it.
type Stream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// Start sets the event-stream headers and flushes them to the client.
func Start(w http.ResponseWriter) (*Stream, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	s := &Stream{w: w, rc: http.NewResponseController(w)}
	if err := s.rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return s, nil
}

// Send writes one event and flushes it.
func (s *Stream) Send(event, data string) error {
	var b strings.Builder
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return s.write(b.String())
}

// Comment writes an SSE comment line. Browsers ignore it; proxies see
// traffic and keep the connection open.
func (s *Stream) Comment(text string) error {
	return s.write(": " + strings.ReplaceAll(text, "\n", " ") + "\n\n")
}

func (s *Stream) write(frame string) error {
	// Not every ResponseWriter supports deadlines; the write still proceeds.
	_ = s.rc.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := s.w.Write([]byte(frame)); err != nil {
		return err
	}
	return s.rc.Flush()
}
