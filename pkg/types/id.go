package types

import "github.com/google/uuid"

// NewCode generates a unique_code for a new entity (UUID v7).
func NewCode() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
