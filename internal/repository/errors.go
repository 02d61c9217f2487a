package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrSlotTaken means a concurrent booking claimed an overlapping slot.
	ErrSlotTaken = errors.New("appointment slot already taken")
	// ErrDuplicate reports a unique constraint violation outside bookings.
	ErrDuplicate = errors.New("duplicate record")
)

// PostgreSQL SQLSTATE codes the repositories react to.
const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqExclusionViolation   = "23P01"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// bookingError folds every way Postgres can reject a concurrent booking
// into ErrSlotTaken.
func bookingError(op string, err error) error {
	switch pqCode(err) {
	case pqExclusionViolation, pqSerializationFailure, pqDeadlockDetected, pqUniqueViolation:
		return fmt.Errorf("%s: %w", op, ErrSlotTaken)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func uniqueError(op string, err error) error {
	if pqCode(err) == pqUniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func paging(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return pageSize, (page - 1) * pageSize
}
