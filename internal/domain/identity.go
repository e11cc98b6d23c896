package domain

import "github.com/google/uuid"

// NewSegmentIdentity mints the single UUID v4 that threads a segment through
// the relational row, the vector point, and the automation log. It must be
// called exactly once per job, before any external call is issued.
func NewSegmentIdentity() string {
	return uuid.New().String()
}
