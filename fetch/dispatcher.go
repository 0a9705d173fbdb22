package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/git-pkgs/snapshots/internal/core"
	"github.com/google/uuid"
)

// Dispatcher delivers download events to registered listeners in
// registration order. A panicking listener is logged and does not prevent
// delivery to the others.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []core.Listener
	logger    core.Logger
}

// NewDispatcher creates a dispatcher. If logger is nil, traces are discarded.
func NewDispatcher(logger core.Logger) *Dispatcher {
	if logger == nil {
		logger = core.NopLogger
	}
	return &Dispatcher{logger: logger}
}

// Register adds a listener.
func (d *Dispatcher) Register(l core.Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Dispatch assigns the event an ID if it has none and notifies every listener.
func (d *Dispatcher) Dispatch(ctx context.Context, event core.Event) core.Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Type == "" {
		event.Type = core.EventArtifactDownloaded
	}

	d.mu.RLock()
	listeners := append([]core.Listener(nil), d.listeners...)
	d.mu.RUnlock()

	for _, l := range listeners {
		d.notify(ctx, l, event)
	}
	return event
}

func (d *Dispatcher) notify(ctx context.Context, l core.Listener, event core.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug("listener panicked", "event", event.ID, "artifact", event.Artifact.String(), "panic", fmt.Sprint(r))
		}
	}()
	l.ArtifactDownloaded(ctx, event)
}
