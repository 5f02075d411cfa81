package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique analysis job id (bare uuid, used in file names)
func NewJobID() string {
	return uuid.New().String()
}
