package collection

import "github.com/google/uuid"

// NewID returns a UUIDv7: 48 bits of unix milliseconds followed by random
// bits. Ids sort roughly by creation time but strict ordering is not
// guaranteed.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
