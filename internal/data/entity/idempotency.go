package entity

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord deduplicates inbound payment events and retried client
// commands. Written once per distinct key; a replay with the same key is a
// no-op that returns the recorded outcome.
type IdempotencyRecord struct {
	Key             string     `db:"key"`
	ReservationID   *uuid.UUID `db:"reservation_id"`
	ResultingStatus string     `db:"resulting_status"`
	Outcome         string     `db:"outcome"`
	ProcessedAt     time.Time  `db:"processed_at"`
}
