package models

import "github.com/google/uuid"

// StoredRun is a calculation read back from the results database.
type StoredRun struct {
	ID     uuid.UUID
	Bundle *ResultBundle
}
