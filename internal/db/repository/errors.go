package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
)

const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

// inviteCodeConstraint is the unique constraint on invitations.invite_code.
// Violating it means the generated code collided, not that the invitee is
// already invited.
const inviteCodeConstraint = "invitations_invite_code_key"

// wrap annotates err with op and maps driver errors onto apperr kinds.
func wrap(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to %s: %w", op, apperr.NotFound(entity))
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == inviteCodeConstraint {
				return fmt.Errorf("failed to %s: %w", op, apperr.ErrInviteCodeTaken)
			}
			return fmt.Errorf("failed to %s: %w", op, apperr.New(apperr.ErrDuplicateConflict, entity+" already exists"))
		case pqForeignKeyViolation:
			return fmt.Errorf("failed to %s: %w", op, apperr.New(apperr.ErrInvalidState, entity+" is referenced by other records"))
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return fmt.Errorf("failed to %s: %w", op, apperr.New(apperr.ErrConflict, "concurrent update, please retry"))
		}
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}

// expectOne turns a zero-row write into NotFound.
func expectOne(op, entity string, result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to %s: %w", op, apperr.NotFound(entity))
	}
	return nil
}
