package models

// SubmitDSRRequest is the request body for submitting a privacy request.
type SubmitDSRRequest struct {
	Type       string  `json:"type" validate:"required"`
	Email      string  `json:"email" validate:"required,email"`
	UserID     *string `json:"userId,omitempty"`
	Regulation string  `json:"regulation,omitempty"`
	Details    string  `json:"details,omitempty" validate:"max=2000"`
}

// DSRSubmitAck is returned to the requester after submission. It never
// carries the verification token; that travels by email only.
type DSRSubmitAck struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Regulation  string    `json:"regulation"`
	SLADays     int       `json:"slaDays"`
	SLADeadline Timestamp `json:"slaDeadline"`
	Message     string    `json:"message"`
}

// DSRVerifyAck is returned after a successful email verification.
type DSRVerifyAck struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DSRRequest is the staff view of a privacy request.
type DSRRequest struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Email       string     `json:"email"`
	UserID      *string    `json:"userId,omitempty"`
	Regulation  string     `json:"regulation"`
	Details     string     `json:"details,omitempty"`
	SubmittedAt Timestamp  `json:"submittedAt"`
	SLADays     int        `json:"slaDays"`
	SLADeadline Timestamp  `json:"slaDeadline"`
	VerifiedAt  *Timestamp `json:"verifiedAt,omitempty"`
	CompletedAt *Timestamp `json:"completedAt,omitempty"`
	ProcessedBy *string    `json:"processedBy,omitempty"`
	AdminNotes  string     `json:"adminNotes,omitempty"`
	Overdue     bool       `json:"overdue"`
}

// PagedDSRRequests represents a paginated list of privacy requests.
type PagedDSRRequests struct {
	Items []DSRRequest      `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// DSRTransitionRequest is the request body for a status change.
type DSRTransitionRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note,omitempty" validate:"max=2000"`
}

// DSRAssignRequest is the request body for assigning a processor.
type DSRAssignRequest struct {
	AssigneeID   string `json:"assigneeId" validate:"required"`
	AssigneeRole string `json:"assigneeRole" validate:"required"`
}

// DSRNoteRequest is the request body for adding an admin note.
type DSRNoteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// DSRExportAck is returned when an export has been scheduled.
type DSRExportAck struct {
	RequestID   string `json:"requestId"`
	Token       string `json:"token"`
	DownloadURL string `json:"downloadUrl"`
}

// ErasureItem describes one record an erasure handler touched or would
// touch.
type ErasureItem struct {
	Store string `json:"store"`
	Kind  string `json:"kind"`
	ID    string `json:"id"`
}

// ErasureHandlerResult is the outcome of one handler invocation.
type ErasureHandlerResult struct {
	Key     string        `json:"key"`
	Label   string        `json:"label"`
	Items   []ErasureItem `json:"items,omitempty"`
	Error   string        `json:"error,omitempty"`
	Skipped bool          `json:"skipped,omitempty"`
}

// ErasureSummary aggregates a full erasure run or preview.
type ErasureSummary struct {
	Handlers      []ErasureHandlerResult `json:"handlers"`
	Succeeded     int                    `json:"succeeded"`
	Failed        int                    `json:"failed"`
	Skipped       int                    `json:"skipped"`
	ItemsAffected int                    `json:"itemsAffected"`
	DryRun        bool                   `json:"dryRun"`
}

// AuditEntry is one immutable audit log line.
type AuditEntry struct {
	ID        string                 `json:"id"`
	RequestID string                 `json:"requestId"`
	Action    string                 `json:"action"`
	ActorID   *string                `json:"actorId,omitempty"`
	Note      string                 `json:"note,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt Timestamp              `json:"createdAt"`
}

// PagedAuditEntries represents a paginated audit trail.
type PagedAuditEntries struct {
	Items []AuditEntry      `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// DSRStats is a per-value breakdown over one request column.
type DSRStats struct {
	Column string         `json:"column"`
	Counts map[string]int `json:"counts"`
}
