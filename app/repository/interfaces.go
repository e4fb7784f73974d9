package repository

import (
	"time"

	"github.com/gitwatch/gitwatch/app/models"
)

// EventRepository defines the interface for webhook event persistence.
type EventRepository interface {
	// CreateIfNotExists appends an event unless its delivery id was seen
	// before. Returns false when the delivery is a duplicate.
	CreateIfNotExists(event *models.GithubEvent) (bool, error)
	// GetRecent returns up to limit events, newest first, optionally
	// filtered by event type.
	GetRecent(limit int, eventType string) ([]models.GithubEvent, error)
	// GetSince returns events created after the given time in
	// chronological order, optionally filtered by event type.
	GetSince(since time.Time, eventType string) ([]models.GithubEvent, error)
	Count() (int64, error)
}
