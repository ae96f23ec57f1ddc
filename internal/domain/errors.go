package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingUser marks a transaction referencing a user absent from
	// the user table. Fatal for that transaction only; the scorer must
	// not silently default the user prior.
	ErrMissingUser = errors.New("user not found")

	// ErrMalformedInput marks a transaction or user record that failed
	// shape validation (negative amount, missing timestamp, empty id).
	// Rejected before scoring, never coerced.
	ErrMalformedInput = errors.New("malformed input")

	// ErrEmptyUserTable marks a batch-level misconfiguration: the user
	// table is empty while transactions reference users. Surfaces before
	// any scoring begins.
	ErrEmptyUserTable = errors.New("user table is empty")
)

// ValidateTransaction performs the shape checks applied before scoring.
func ValidateTransaction(tx *Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: transaction is nil", ErrMalformedInput)
	}
	if tx.ID == "" {
		return fmt.Errorf("%w: transaction id is empty", ErrMalformedInput)
	}
	if tx.Amount < 0 {
		return fmt.Errorf("%w: negative amount %.2f", ErrMalformedInput, tx.Amount)
	}
	if tx.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrMalformedInput)
	}
	return nil
}

// ValidateUserProfile performs the shape checks applied to reference data.
func ValidateUserProfile(u *UserProfile) error {
	if u == nil {
		return fmt.Errorf("%w: user profile is nil", ErrMalformedInput)
	}
	if u.AccountAgeDays < 0 {
		return fmt.Errorf("%w: negative account age %d", ErrMalformedInput, u.AccountAgeDays)
	}
	if u.RiskScore < 0 || u.RiskScore > 1 {
		return fmt.Errorf("%w: user risk score %.2f outside [0,1]", ErrMalformedInput, u.RiskScore)
	}
	return nil
}
