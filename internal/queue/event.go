// Package queue defines the change events exchanged over the message broker
// and the publisher and consumer that move them.
package queue

import "time"

// Actions carried by MovieEvent.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// MovieEventsQueue is the durable queue change events are published to.
const MovieEventsQueue = "movie.changed"

// MovieEvent is published after a mutation has been persisted.  It carries
// enough for downstream consumers to log or invalidate caches without
// reading the document.
type MovieEvent struct {
	Action     string `json:"action"`
	MovieID    int64  `json:"movie_id"`
	Title      string `json:"title,omitempty"`
	Image      string `json:"image,omitempty"` // stored filename, not a URL
	OccurredAt string `json:"occurred_at"`
}

// NewMovieEvent stamps an event with the current UTC time.
func NewMovieEvent(action string, id int64, title, image string) MovieEvent {
	return MovieEvent{
		Action:     action,
		MovieID:    id,
		Title:      title,
		Image:      image,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
