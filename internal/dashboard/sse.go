package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ChangeEvent is pushed to SSE subscribers after every committed mutation.
// The payload is deliberately small: clients re-fetch what they display.
type ChangeEvent struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}

// broker fans one change feed out to the active SSE subscribers. Slow
// subscribers drop events rather than block the mutation path.
type broker struct {
	mu   sync.Mutex
	subs map[chan ChangeEvent]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[chan ChangeEvent]struct{})}
}

func (b *broker) publish(ev ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broker) subscribe() chan ChangeEvent {
	ch := make(chan ChangeEvent, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broker) unsubscribe(ch chan ChangeEvent) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// handleEvents serves the /api/events SSE stream: a comment on connect, a
// "change" event per mutation, heartbeats to keep proxies from reaping the
// connection.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := s.broker.subscribe()
	defer s.broker.unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()

	fmt.Fprintf(w, ": stream online %s\n\n", time.Now().UTC().Format(time.RFC3339))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := writeSSEEvent(w, "change", ev); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if err := writeSSEEvent(w, "heartbeat", map[string]string{
				"at": time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
