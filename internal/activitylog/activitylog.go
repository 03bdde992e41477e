// Package activitylog implements an append-only activity log: a bounded,
// rotating in-memory ring buffer of domain.ActivityEntry records, exportable
// as JSON lines for the CLI/admin surface.
package activitylog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// Capacity bounds the log to 500 entries in memory, rotating the oldest out.
const Capacity = 500

// Log is a fixed-capacity ring buffer of activity entries. The zero value
// is not usable; construct with New.
type Log struct {
	mu      sync.RWMutex
	entries []domain.ActivityEntry
	start   int // index of the oldest entry within entries
	count   int
}

// New builds an empty Log at the default capacity.
func New() *Log {
	return &Log{entries: make([]domain.ActivityEntry, Capacity)}
}

// Append adds one entry, overwriting the oldest entry once the log is full.
func (l *Log) Append(entry domain.ActivityEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := (l.start + l.count) % Capacity
	l.entries[idx] = entry
	if l.count < Capacity {
		l.count++
	} else {
		l.start = (l.start + 1) % Capacity
	}
}

// Infof appends an info-level entry with a formatted message.
func (l *Log) Infof(format string, args ...any) {
	l.Append(domain.ActivityEntry{Level: domain.ActivityInfo, Message: fmt.Sprintf(format, args...)})
}

// Warnf appends a warning-level entry.
func (l *Log) Warnf(format string, args ...any) {
	l.Append(domain.ActivityEntry{Level: domain.ActivityWarning, Message: fmt.Sprintf(format, args...)})
}

// Errorf appends an error-level entry.
func (l *Log) Errorf(format string, args ...any) {
	l.Append(domain.ActivityEntry{Level: domain.ActivityError, Message: fmt.Sprintf(format, args...)})
}

// Trade appends a trade-level entry with structured data attached.
func (l *Log) Trade(message string, data map[string]any) {
	l.Append(domain.ActivityEntry{Level: domain.ActivityTrade, Message: message, Data: data})
}

// Cycle appends a cycle-level entry, used once per scan cycle summary.
func (l *Log) Cycle(message string, data map[string]any) {
	l.Append(domain.ActivityEntry{Level: domain.ActivityCycle, Message: message, Data: data})
}

// Recent returns the entries currently held, oldest first.
func (l *Log) Recent() []domain.ActivityEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.ActivityEntry, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.entries[(l.start+i)%Capacity]
	}
	return out
}

// ExportJSONLines serializes every held entry as newline-delimited JSON for
// the CLI export surface.
func (l *Log) ExportJSONLines() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, entry := range l.Recent() {
		if err := enc.Encode(entry); err != nil {
			return nil, fmt.Errorf("activitylog: encode entry: %w", err)
		}
	}
	return buf.Bytes(), nil
}
