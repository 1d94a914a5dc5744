// Package dsr provides the data subject request lifecycle engine.
package dsr

import (
	"errors"
	"fmt"
	"time"
)

// Repository errors.
var (
	ErrRequestNotFound = errors.New("request not found")
)

// Service errors.
var (
	ErrInvalidAssignee = errors.New("assignee does not hold an elevated role")
	ErrNotErasable     = errors.New("request is not eligible for erasure")
	ErrNotExportable   = errors.New("request is not eligible for export")
)

// RequestType enumerates the seven data subject rights.
type RequestType string

const (
	TypeAccess            RequestType = "access"
	TypeErasure           RequestType = "erasure"
	TypePortability       RequestType = "portability"
	TypeRectification     RequestType = "rectification"
	TypeRestriction       RequestType = "restriction"
	TypeObjection         RequestType = "objection"
	TypeAutomatedDecision RequestType = "automated_decision"
)

// RequestTypes lists all valid request types.
var RequestTypes = []RequestType{
	TypeAccess,
	TypeErasure,
	TypePortability,
	TypeRectification,
	TypeRestriction,
	TypeObjection,
	TypeAutomatedDecision,
}

// Valid reports whether t is one of the enumerated rights.
func (t RequestType) Valid() bool {
	for _, rt := range RequestTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// Status enumerates the request lifecycle states.
type Status string

const (
	StatusPendingVerification Status = "pending_verification"
	StatusVerified            Status = "verified"
	StatusInProgress          Status = "in_progress"
	StatusOnHold              Status = "on_hold"
	StatusCompleted           Status = "completed"
	StatusRejected            Status = "rejected"
)

// legalTransitions is the compile-time transition table. Completed and
// rejected are terminal; a same-state transition is a no-op handled by the
// service before this table is consulted.
var legalTransitions = map[Status][]Status{
	StatusPendingVerification: {StatusVerified, StatusRejected},
	StatusVerified:            {StatusInProgress, StatusRejected},
	StatusInProgress:          {StatusOnHold, StatusCompleted, StatusRejected},
	StatusOnHold:              {StatusInProgress, StatusRejected},
	StatusCompleted:           {},
	StatusRejected:            {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := legalTransitions[s]
	return ok
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return len(legalTransitions[s]) == 0
}

// CanTransitionTo reports whether the transition s -> next is legal.
// A same-state transition is always allowed (no-op).
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, t := range legalTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// TransitionError reports an illegal status transition. It carries the
// attempted source and target for diagnostics.
type TransitionError struct {
	RequestID string
	From      Status
	To        Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for request %s", e.From, e.To, e.RequestID)
}

// Regulation enumerates the supported privacy regulations.
type Regulation string

const (
	RegulationGDPR   Regulation = "gdpr"
	RegulationCCPA   Regulation = "ccpa"
	RegulationLGPD   Regulation = "lgpd"
	RegulationUKGDPR Regulation = "uk_gdpr"
	RegulationPIPEDA Regulation = "pipeda"
	RegulationPOPIA  Regulation = "popia"
)

// Valid reports whether r is a supported regulation.
func (r Regulation) Valid() bool {
	_, ok := regulationSLADays[r]
	return ok
}

// Request represents one data subject request.
type Request struct {
	ID                string
	Type              RequestType
	Status            Status
	RequesterEmail    string
	UserID            *string
	Regulation        Regulation
	Details           string
	VerificationToken string
	SubmittedAt       time.Time
	SLADays           int
	SLADeadline       time.Time
	VerifiedAt        *time.Time
	CompletedAt       *time.Time
	ProcessedBy       *string
	AdminNotes        string
	IPHash            string
	UserAgentHash     string
}

// Open reports whether the request is still being worked
// (counts toward overdue sweeps).
func (r *Request) Open() bool {
	return r.Status == StatusVerified || r.Status == StatusInProgress
}

// Overdue reports whether now is past the fixed SLA deadline.
func (r *Request) Overdue(now time.Time) bool {
	return now.After(r.SLADeadline)
}
