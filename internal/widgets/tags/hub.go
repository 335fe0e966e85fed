package tags

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/tagdeck/internal/metrics"
)

// Hub holds the live views of every open tag page.
type Hub struct {
	service     TagService
	debounce    time.Duration
	idleTimeout time.Duration
	now         func() time.Time

	mu    sync.Mutex
	views map[string]*View
}

// NewHub creates a Hub. Views debounce the filter by debounce and are
// reaped after idleTimeout without an attached stream.
func NewHub(service TagService, debounce, idleTimeout time.Duration) *Hub {
	return &Hub{
		service:     service,
		debounce:    debounce,
		idleTimeout: idleTimeout,
		now:         time.Now,
		views:       make(map[string]*View),
	}
}

// Open creates and registers a view starting at st.
func (h *Hub) Open(st State) *View {
	v := newView(uuid.NewString(), st, h.service, h.debounce, h.now)

	h.mu.Lock()
	h.views[v.ID()] = v
	h.mu.Unlock()

	metrics.LiveViewOpened()
	return v
}

// Get returns the view with the given ID.
func (h *Hub) Get(id string) (*View, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.views[id]
	return v, ok
}

// Len returns the number of open views.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.views)
}

// Run reaps idle views until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	interval := h.idleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := h.reap(); n > 0 {
				slog.Debug("reaped idle tag views", slog.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes every view.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	views := make([]*View, 0, len(h.views))
	for id, v := range h.views {
		views = append(views, v)
		delete(h.views, id)
	}
	h.mu.Unlock()

	for _, v := range views {
		v.Close()
		metrics.LiveViewClosed()
	}
}

func (h *Hub) reap() int {
	now := h.now()

	h.mu.Lock()
	var idle []*View
	for id, v := range h.views {
		if v.idle(now, h.idleTimeout) {
			idle = append(idle, v)
			delete(h.views, id)
		}
	}
	h.mu.Unlock()

	for _, v := range idle {
		v.Close()
		metrics.LiveViewClosed()
	}
	return len(idle)
}
