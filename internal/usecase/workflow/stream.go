package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/ticketlens/internal/domain/event"
)

// stream serializes emissions from the pipeline and the heartbeat goroutine.
type stream struct {
	ctx  context.Context
	out  chan event.Event
	now  func() time.Time
	mu   sync.Mutex
	last time.Time
}

func newStream(ctx context.Context, now func() time.Time) *stream {
	return &stream{ctx: ctx, out: make(chan event.Event), now: now, last: now()}
}

// emit blocks until the consumer takes ev or goes away.
func (s *stream) emit(ev event.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.out <- ev:
		s.last = s.now()
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *stream) idle() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.last)
}

// heartbeat emits a heartbeat whenever nothing was sent for interval, until done closes.
func (s *stream) heartbeat(done <-chan struct{}, interval time.Duration, started time.Time) {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-done:
			return
		case <-timer.C:
			idle := s.idle()
			if idle < interval {
				timer.Reset(interval - idle)
				continue
			}
			now := s.now()
			s.emit(event.NewHeartbeat(now, now.Sub(started)))
			timer.Reset(interval)
		}
	}
}
