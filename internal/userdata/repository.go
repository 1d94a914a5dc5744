package userdata

import (
	"context"
	"errors"
)

// ErrAccountNotFound is returned when no account matches a lookup.
var ErrAccountNotFound = errors.New("account not found")

// Repository defines the data access contract for user data. Lookups that
// find nothing return ErrAccountNotFound (accounts) or empty slices
// (comments, consents).
type Repository interface {
	// FindAccount resolves an account by user id when set, otherwise by
	// email (case-insensitive).
	FindAccount(ctx context.Context, userID, email string) (*Account, error)

	// AnonymizeAccount replaces the account's identifying fields with
	// non-reversible placeholders and marks it anonymized.
	AnonymizeAccount(ctx context.Context, id string) error

	ListCommentsByAuthor(ctx context.Context, authorID string) ([]Comment, error)

	// RedactCommentsByAuthor blanks the body of every comment attributed to
	// the author and returns how many were touched.
	RedactCommentsByAuthor(ctx context.Context, authorID string) (int, error)

	ListConsentsByUser(ctx context.Context, userID string) ([]ConsentRecord, error)

	// DeleteConsentsByUser removes every consent record for the user and
	// returns how many were deleted.
	DeleteConsentsByUser(ctx context.Context, userID string) (int, error)
}
