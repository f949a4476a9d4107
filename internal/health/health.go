package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/clambin/adax-bridge/internal/adax"
)

// Source publishes Home updates.
type Source interface {
	Subscribe() chan adax.Home
	Unsubscribe(chan adax.Home)
	Refresh()
	PendingChanges() int
}

// Health reports the last Home received. It reports an error until the first update has been received.
type Health struct {
	source  Source
	logger  *slog.Logger
	home    adax.Home
	updated time.Time
	lock    sync.RWMutex
}

func New(source Source, logger *slog.Logger) *Health {
	return &Health{
		source: source,
		logger: logger,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.source.Subscribe()
	defer h.source.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case home := <-ch:
			h.lock.Lock()
			h.home = home
			h.updated = time.Now()
			h.lock.Unlock()
		}
	}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if h.updated.IsZero() {
		http.Error(w, "no update yet", http.StatusServiceUnavailable)
		h.source.Refresh()
		return
	}

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(struct {
		Rooms   []adax.Room `json:"rooms"`
		Pending int         `json:"pending"`
		Updated time.Time   `json:"updated"`
	}{
		Rooms:   h.home.Rooms,
		Pending: h.source.PendingChanges(),
		Updated: h.updated,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
