// Package events publishes resume lifecycle notifications keyed by resume id.
package events

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	ResumeCreated          = "resume.created"
	ResumeGenerated        = "resume.generated"
	ResumeGenerationFailed = "resume.generation_failed"
	ResumeUpdated          = "resume.updated"
	ResumePreviewUpdated   = "resume.preview_updated"
)

// Event is a lifecycle notification about one resume.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ResumeID  string    `json:"resumeId"`
	ProfileID string    `json:"profileId"`
	At        time.Time `json:"at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the published event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
