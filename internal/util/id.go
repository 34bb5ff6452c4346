package util

import "github.com/google/uuid"

// NewID returns a random identifier for persisted records.
func NewID() string {
	return uuid.NewString()
}
