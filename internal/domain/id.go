package domain

import "github.com/google/uuid"

// NewID returns prefix + "_" + a time-ordered UUIDv7, e.g. "tip_0190...".
// Falls back to a random v4 if the v7 generator fails.
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "_" + id.String()
}
