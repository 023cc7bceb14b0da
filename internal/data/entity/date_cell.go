package entity

import (
	"time"

	"github.com/google/uuid"
)

type CellStatus string

const (
	CellStatusFree   CellStatus = "free"
	CellStatusHeld   CellStatus = "held"
	CellStatusBooked CellStatus = "booked"
)

// DateCell is the per-date unit of exclusion. Cells are mutated only through
// the ledger repository's conditional writes, never directly.
type DateCell struct {
	Date                time.Time  `db:"date"`
	Status              CellStatus `db:"status"`
	HolderReservationID *uuid.UUID `db:"holder_reservation_id"`
	UpdatedAt           time.Time  `db:"updated_at"`
}
