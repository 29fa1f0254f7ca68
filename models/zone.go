package models

import "github.com/google/uuid"

// Zone is a named NECC price-reporting region (production or consumption centre)
type Zone struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	IsActive bool      `json:"is_active" db:"is_active"`
}
