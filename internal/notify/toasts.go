package notify

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/debemdeboas/newsdesk/internal/config"
)

// Toasts collects the messages raised while handling one request and
// hands them to htmx through the HX-Trigger header.
type Toasts struct {
	mu       sync.Mutex
	events   []Event
	triggers map[string]any
}

func (t *Toasts) Success(msg string) {
	t.add(Event{Level: LevelSuccess, Message: msg})
}

func (t *Toasts) Error(msg string) {
	t.add(Event{Level: LevelError, Message: msg})
}

func (t *Toasts) add(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

// Trigger adds another htmx event, sent alongside the toasts.
func (t *Toasts) Trigger(name string, detail any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.triggers == nil {
		t.triggers = make(map[string]any)
	}
	t.triggers[name] = detail
}

func (t *Toasts) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}

// Write sets the trigger header. It must run before the response body is
// written and does nothing when there is nothing to show.
func (t *Toasts) Write(w http.ResponseWriter) {
	events := t.Events()

	t.mu.Lock()
	payload := make(map[string]any, len(t.triggers)+1)
	for name, detail := range t.triggers {
		payload[name] = detail
	}
	t.mu.Unlock()

	if len(events) > 0 {
		payload["showToast"] = events
	}
	if len(payload) == 0 {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	w.Header().Set(config.HHxTrigger, string(b))
}
