package model

import "time"

type EventType string

const (
	EventBookAdded        EventType = "book.added"
	EventBookRequested    EventType = "book.requested"
	EventBookApproved     EventType = "book.approved"
	EventBookRejected     EventType = "book.rejected"
	EventBookReturned     EventType = "book.returned"
	EventBookDeleted      EventType = "book.deleted"
	EventCategoryAdded    EventType = "category.added"
	EventSnapshotReplaced EventType = "snapshot.replaced"
)

// Event is published after a snapshot change has been persisted.
type Event struct {
	Type       EventType `json:"type"`
	BookID     string    `json:"bookId,omitempty"`
	CategoryID string    `json:"categoryId,omitempty"`
	Version    int64     `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
}
