package audit

import "context"

// Repository defines the interface for audit log persistence. Implementations
// must treat entries as append-only: no update operation exists, and deletion
// is only offered in bulk per request ID.
type Repository interface {
	// Append stores a new entry and returns its ID.
	Append(ctx context.Context, entry *Entry) (string, error)

	// Query retrieves entries matching the filters, oldest first, along with
	// the total match count before limit/offset.
	Query(ctx context.Context, filters Filters) ([]*Entry, int, error)

	// DeleteByRequest removes every entry for a request and returns the count.
	DeleteByRequest(ctx context.Context, requestID string) (int, error)
}
