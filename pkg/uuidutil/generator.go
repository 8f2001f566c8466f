package uuidutil

import "github.com/google/uuid"

// New returns a random UUID string.
func New() string {
	return uuid.New().String()
}

// IsValid reports whether id parses as a UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
