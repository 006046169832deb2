package types

import "time"

// Entity carries the creation and update timestamps of persisted records.
type Entity struct {
	CreatedAt time.Time `json:"created_at" grove:"created_at,notnull" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" grove:"updated_at,notnull" bson:"updated_at"`
}

// NewEntity creates a new Entity with current timestamps.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// ExpiredAt reports whether the entity was created before cutoff.
func (e Entity) ExpiredAt(cutoff time.Time) bool {
	return e.CreatedAt.Before(cutoff)
}
