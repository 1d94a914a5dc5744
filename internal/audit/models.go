// Package audit provides the append-only, privacy-preserving audit trail for
// data subject request processing. Entries are immutable once written;
// deletion is only permitted in bulk per request (erasure of evidence).
package audit

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrEntryNotFound = errors.New("audit entry not found")
)

// Action enumerates the auditable lifecycle actions.
type Action string

const (
	ActionSubmit           Action = "submit"
	ActionVerify           Action = "verify"
	ActionStatusChange     Action = "status_change"
	ActionAssign           Action = "assign"
	ActionNoteAdded        Action = "note_added"
	ActionExportGenerated  Action = "export_generated"
	ActionExportDownloaded Action = "export_downloaded"
	ActionErasureExecuted  Action = "erasure_executed"
	ActionErasurePreview   Action = "erasure_preview"
	ActionHandlerSuccess   Action = "handler_success"
	ActionHandlerFailed    Action = "handler_failed"
	ActionHandlerSkipped   Action = "handler_skipped"
	ActionErasureStarted   Action = "erasure_started"
	ActionErasureCompleted Action = "erasure_completed"
)

// Entry represents one audit log record. ActorID is nil for actions taken by
// the system or the requester. IPHash and UserAgentHash are one-way hashes;
// raw values are never persisted.
type Entry struct {
	ID            string
	RequestID     string
	Action        Action
	ActorID       *string
	Note          string
	Metadata      map[string]interface{}
	IPHash        string
	UserAgentHash string
	CreatedAt     time.Time
}

// Filters narrows Query results. Zero values are ignored.
type Filters struct {
	RequestID string
	Action    Action
	ActorID   string
	Limit     int
	Offset    int
}
