package sink

import (
	"context"
	"sync"
	"time"

	"github.com/STTM-NSU/stocks-alerter/internal/model"
)

type EntryKind string

const (
	KindAlert  EntryKind = "alert"
	KindStatus EntryKind = "status"
)

type Entry struct {
	Time  time.Time         `json:"time"`
	Kind  EntryKind         `json:"kind"`
	Text  string            `json:"text"`
	Alert *model.AlertEvent `json:"alert,omitempty"`
}

// EventLog keeps the last size notifications in memory.
type EventLog struct {
	entries []Entry
	next    int
	full    bool
	mu      sync.RWMutex

	now func() time.Time
}

func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = 200
	}

	return &EventLog{
		entries: make([]Entry, size),
		now:     time.Now,
	}
}

func (l *EventLog) NotifyAlert(_ context.Context, alert model.AlertEvent) {
	l.add(Entry{Kind: KindAlert, Text: FormatAlert(alert), Alert: &alert})
}

func (l *EventLog) NotifyStatus(_ context.Context, text string) {
	l.add(Entry{Kind: KindStatus, Text: text})
}

func (l *EventLog) add(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Time = l.now()
	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

// Recent returns up to n entries of kind, newest first. An empty kind matches all.
func (l *EventLog) Recent(n int, kind EntryKind) []Entry {
	if n <= 0 {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = len(l.entries)
	}

	out := make([]Entry, 0, min(n, size))
	for i := 1; i <= size && len(out) < n; i++ {
		e := l.entries[(l.next-i+len(l.entries))%len(l.entries)]
		if kind != "" && e.Kind != kind {
			continue
		}
		out = append(out, e)
	}
	return out
}
