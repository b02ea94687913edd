package core

import "github.com/google/uuid"

// NewID returns a new random identifier.
func NewID() string {
	return uuid.NewString()
}

// IsValidID reports whether id is a well-formed identifier.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
