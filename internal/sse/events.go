// Package sse implements Server-Sent Events for audiobook progress and job updates.
package sse

import (
	"time"

	"github.com/listenupapp/readalong/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventAudiobookUpdated is sent when new chunks of an audiobook become ready.
	EventAudiobookUpdated EventType = "audiobook.updated"
	// EventAudiobookCompleted is sent once when every chunk of an audiobook is ready.
	EventAudiobookCompleted EventType = "audiobook.completed"
	// EventAudiobookRemoved is sent when an audiobook's manifest disappears.
	EventAudiobookRemoved EventType = "audiobook.removed"

	// EventJobCreated is sent when a processing request is forwarded.
	EventJobCreated EventType = "job.created"
	// EventJobFailed is sent when the processing service rejects a request.
	EventJobFailed EventType = "job.failed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// BookID limits delivery to clients following that book (or all books).
	// Not sent to the client.
	BookID string `json:"-"`
}

// AudiobookEventData is the payload of audiobook update and completion events.
type AudiobookEventData struct {
	Audiobook          domain.AudiobookSummary `json:"audiobook"`
	ProgressPercentage float64                 `json:"progress_percentage"`
	NewChunks          int                     `json:"new_chunks"`
}

// AudiobookRemovedEventData is the payload of audiobook removal events.
type AudiobookRemovedEventData struct {
	BookID string `json:"book_id"`
}

// JobEventData is the payload of job events.
type JobEventData struct {
	Job *domain.Job `json:"job"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewAudiobookUpdatedEvent creates an audiobook.updated event.
func NewAudiobookUpdatedEvent(m *domain.Manifest, summary domain.AudiobookSummary, newChunks int) Event {
	return Event{
		Type: EventAudiobookUpdated,
		Data: AudiobookEventData{
			Audiobook:          summary,
			ProgressPercentage: m.ProgressPercentage,
			NewChunks:          newChunks,
		},
		BookID:    m.BookID,
		Timestamp: time.Now(),
	}
}

// NewAudiobookCompletedEvent creates an audiobook.completed event.
func NewAudiobookCompletedEvent(m *domain.Manifest, summary domain.AudiobookSummary) Event {
	return Event{
		Type: EventAudiobookCompleted,
		Data: AudiobookEventData{
			Audiobook:          summary,
			ProgressPercentage: m.ProgressPercentage,
		},
		BookID:    m.BookID,
		Timestamp: time.Now(),
	}
}

// NewAudiobookRemovedEvent creates an audiobook.removed event.
func NewAudiobookRemovedEvent(bookID string) Event {
	return Event{
		Type:      EventAudiobookRemoved,
		Data:      AudiobookRemovedEventData{BookID: bookID},
		BookID:    bookID,
		Timestamp: time.Now(),
	}
}

// NewJobCreatedEvent creates a job.created event.
func NewJobCreatedEvent(job *domain.Job) Event {
	return Event{Type: EventJobCreated, Data: JobEventData{Job: job}, Timestamp: time.Now()}
}

// NewJobFailedEvent creates a job.failed event.
func NewJobFailedEvent(job *domain.Job) Event {
	return Event{Type: EventJobFailed, Data: JobEventData{Job: job}, Timestamp: time.Now()}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
