package models

import "time"

// Event types as stored in events.type.
const (
	EventTypeSeminar  = "seminar"
	EventTypeWorkshop = "workshop"
	EventTypeLecture  = "lecture"
)

// Event is a scheduled seminar, workshop or lecture.
type Event struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	Type     string    `json:"type"`
	StartsAt time.Time `json:"starts_at"`
}
