// Package notify provides the best-effort notification channels: webhook
// push for urgent cycle output and cross-process cycle event files with a
// filesystem watcher.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Event is the payload written to an event file.
type Event struct {
	Type    string `json:"type"`
	ItemID  string `json:"item_id,omitempty"`
	Message string `json:"message,omitempty"`
	Time    int64  `json:"time"`
}

// Well-known event types emitted by the loop processes.
const (
	EventCycleCompleted = "cycle_completed"
	EventGoalDecomposed = "goal_decomposed"
	EventDeepThinkDone  = "deepthink_completed"
	EventUrgent         = "urgent"
)

// EventWriter writes notification event files to a shared directory.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, "events")}
}

// Notify writes an event file. Safe to call concurrently. Errors are
// returned but not fatal.
func (w *EventWriter) Notify(eventType, itemID, message string) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	evt := Event{
		Type:    eventType,
		ItemID:  itemID,
		Message: message,
		Time:    time.Now().UnixNano(),
	}
	data, _ := json.Marshal(evt)
	filename := fmt.Sprintf("%d-%s.event", evt.Time, sanitizeID(eventType+"-"+itemID))
	path := filepath.Join(w.dir, filename)
	return os.WriteFile(path, data, 0o600)
}

// sanitizeID replaces characters unsafe for filenames.
func sanitizeID(id string) string {
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		if id[i] == '/' || id[i] == ':' {
			out[i] = '_'
		} else {
			out[i] = id[i]
		}
	}
	return string(out)
}
