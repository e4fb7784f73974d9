package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gitwatch/gitwatch/app/models"
)

// eventRepository implements the EventRepository interface
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository instance
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// CreateIfNotExists inserts the event with ON CONFLICT DO NOTHING on the
// delivery id. Webhook senders redeliver after timeouts, so a duplicate is
// a normal outcome, not an error.
func (r *eventRepository) CreateIfNotExists(event *models.GithubEvent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "delivery_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// GetRecent retrieves stored events, newest first.
func (r *eventRepository) GetRecent(limit int, eventType string) ([]models.GithubEvent, error) {
	var events []models.GithubEvent
	q := r.db.Order("created_at DESC").Limit(limit)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	err := q.Find(&events).Error
	return events, err
}

// GetSince retrieves events created after the given time, oldest first,
// for chronological reporting aggregation.
func (r *eventRepository) GetSince(since time.Time, eventType string) ([]models.GithubEvent, error) {
	var events []models.GithubEvent
	q := r.db.Where("created_at > ?", since).Order("created_at ASC")
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	err := q.Find(&events).Error
	return events, err
}

// Count returns the total number of stored events.
func (r *eventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.GithubEvent{}).Count(&count).Error
	return count, err
}
