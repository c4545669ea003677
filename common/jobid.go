// Package common holds small types and helpers shared across genforge's
// packages: job identifiers, the logger interface and its zap-backed
// implementation, and the Cause error helper.
package common

import (
	"github.com/google/uuid"
)

// JobID identifies a BatchJob. It is a UUID, generated the same way
// azcopy generates its own JobID (google/uuid), but printed without
// dashes stripped so it reads as a normal UUID in logs and API responses.
type JobID uuid.UUID

// NewJobID returns a fresh random JobID.
func NewJobID() JobID {
	return JobID(uuid.New())
}

// ParseJobID parses a UUID string into a JobID.
func ParseJobID(s string) (JobID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return JobID{}, err
	}
	return JobID(u), nil
}

func (j JobID) String() string {
	return uuid.UUID(j).String()
}

// IsEmpty reports whether j is the zero JobID.
func (j JobID) IsEmpty() bool {
	return j == JobID{}
}
