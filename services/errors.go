package services

import (
	"fmt"

	"github.com/google/uuid"
)

// ZoneNotFoundError is a row whose label matches no active zone
type ZoneNotFoundError struct {
	Label string
}

func (e *ZoneNotFoundError) Error() string {
	return "Zone not found: " + e.Label
}

// WriteFailedError is a row whose lookup, insert or update hit the backend and failed
type WriteFailedError struct {
	Label  string
	ZoneID uuid.UUID
	Date   string
	Op     string // "look up", "insert" or "update"
	Err    error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("Failed to %s price for %s on %s: %v", e.Op, e.Label, e.Date, e.Err)
}

func (e *WriteFailedError) Unwrap() error {
	return e.Err
}
