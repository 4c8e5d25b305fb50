package services

import (
	"sync"
	"time"
)

// Admin event types.
const (
	EventBackupCompleted  = "backup.completed"
	EventBackupFailed     = "backup.failed"
	EventRestoreCompleted = "restore.completed"
	EventSettingUpdated   = "setting.updated"
	EventCacheReloaded    = "cache.reloaded"
)

// AdminEvent is a notification pushed to connected admin consoles.
type AdminEvent struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Subject string    `json:"subject,omitempty"` // backup file name or setting key
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// EventHub fans admin events out to subscribers.
type EventHub struct {
	clients map[string]chan AdminEvent
	mu      sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[string]chan AdminEvent)}
}

// Subscribe registers clientID and returns its event channel.
func (h *EventHub) Subscribe(clientID string) <-chan AdminEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan AdminEvent, 64)
	if old, ok := h.clients[clientID]; ok {
		close(old)
	}
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe closes and removes the client's channel.
func (h *EventHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (h *EventHub) Publish(event AdminEvent) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var (
	globalEventHub *EventHub
	eventHubOnce   sync.Once
)

// GetEventHub returns the process-wide hub.
func GetEventHub() *EventHub {
	eventHubOnce.Do(func() {
		globalEventHub = NewEventHub()
	})
	return globalEventHub
}

// PublishAdminEvent publishes on the global hub.
func PublishAdminEvent(typ, subject, message string, err error) {
	ev := AdminEvent{Type: typ, Subject: subject, Message: message}
	if err != nil {
		ev.Error = err.Error()
	}
	GetEventHub().Publish(ev)
}
