// Package userdata holds the primary-store records the built-in erasure
// handlers and export providers operate on: accounts, comments, and consent
// decisions.
package userdata

import "time"

// Account is a user account in the primary store.
type Account struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Locale      string    `json:"locale,omitempty"`
	Anonymized  bool      `json:"anonymized"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Comment is user-generated content attributed to an account.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	Redacted  bool      `json:"redacted"`
	CreatedAt time.Time `json:"created_at"`
}

// ConsentRecord is one recorded consent decision for an account.
type ConsentRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Purpose    string    `json:"purpose"`
	Granted    bool      `json:"granted"`
	RecordedAt time.Time `json:"recorded_at"`
}
