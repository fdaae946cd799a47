package kpi

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultBufferSize = 256

// Emitter is the fire-and-forget side of the metrics sink.
type Emitter interface {
	Emit(kind Kind, payload any)
}

type Recorder interface {
	Record(event Event) error
}

// Sink queues events without blocking the caller and hands them to the
// recorders from a single goroutine. Events are dropped when the buffer is
// full or the sink is closed.
type Sink struct {
	queue     chan Event
	recorders []Recorder

	closeOnce sync.Once
}

var _ Emitter = (*Sink)(nil)

func NewSink(bufferSize int, recorders ...Recorder) *Sink {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	return &Sink{
		queue:     make(chan Event, bufferSize),
		recorders: recorders,
	}
}

func (s *Sink) Emit(kind Kind, payload any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("kpi sink is closed", "kind", kind)
		}
	}()

	select {
	case s.queue <- Event{Kind: kind, Time: time.Now(), Payload: payload}:
	default:
		slog.Warn("kpi queue is full", "kind", kind)
	}
}

// Run drains the queue until ctx ends or the sink is closed. Events already
// queued when ctx ends are still recorded.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case event, ok := <-s.queue:
			if !ok {
				return
			}
			s.record(event)
		}
	}
}

func (s *Sink) drain() {
	for {
		select {
		case event, ok := <-s.queue:
			if !ok {
				return
			}
			s.record(event)
		default:
			return
		}
	}
}

func (s *Sink) record(event Event) {
	for _, recorder := range s.recorders {
		if err := recorder.Record(event); err != nil {
			slog.Warn("Failed to record kpi event",
				"kind", event.Kind,
				"error", err,
			)
		}
	}
}

func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
}
