// Package eventbus publishes pipeline lifecycle events (stage started,
// stage finished, chunk failed) to in-process subscribers and, optionally,
// to EventBridge for external observers.
package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one lifecycle notification emitted by a pipeline stage.
type Event struct {
	Type      string
	Stage     string
	ChunkID   string
	Detail    string
	Timestamp time.Time
}

// Handler receives events published to a Bus.
type Handler func(Event)

// Bus is a process-local fan-out publisher. Handlers are invoked
// synchronously in registration order; a slow handler delays the
// publisher, so handlers that do real I/O should hand off to their own
// goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *zap.Logger
}

// New returns an empty Bus.
func New(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers h to receive every subsequently published Event.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish fans e out to every subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}

// Publisher forwards events to an external bus (EventBridge). A nil
// Publisher is a valid no-op.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Forward subscribes a Bus handler that hands every event to pub,
// logging but not failing the caller on publish errors — lifecycle
// notifications are best-effort, never load-bearing for pipeline
// correctness.
func Forward(ctx context.Context, b *Bus, pub Publisher, logger *zap.Logger) {
	if pub == nil {
		return
	}
	b.Subscribe(func(e Event) {
		if err := pub.Publish(ctx, e); err != nil {
			logger.Warn("eventbus: forward failed", zap.String("type", e.Type), zap.Error(err))
		}
	})
}
