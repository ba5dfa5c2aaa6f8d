package domain

import "github.com/google/uuid"

// NewID returns a new random identifier for any domain entity. Centralized
// here so every repository constructs ids the same way (google/uuid
// throughout).
func NewID() string {
	return uuid.NewString()
}
