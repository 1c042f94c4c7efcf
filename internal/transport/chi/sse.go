package chi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kailas-cloud/ticketlens/internal/domain/event"
)

var errStreamingUnsupported = errors.New("streaming not supported by response writer")

// sseWriter frames events as text/event-stream and flushes after every frame.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

// Write sends one event. A write error means the client went away.
func (s *sseWriter) Write(ev event.Event) error {
	data, err := ev.Data()
	if err != nil {
		return err
	}
	s.seq++

	var buf bytes.Buffer
	buf.WriteString("event: ")
	buf.WriteString(string(ev.Type()))
	buf.WriteString("\nid: ")
	buf.WriteString(strconv.Itoa(s.seq))
	buf.WriteByte('\n')
	// JSON never contains raw newlines, so one data line is enough.
	buf.WriteString("data: ")
	buf.Write(data)
	buf.WriteString("\n\n")

	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Type(), err)
	}
	s.flusher.Flush()
	return nil
}
