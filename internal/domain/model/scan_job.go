// Package model defines the core data types shared by the scan orchestrator, its stores, and its adapters.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ScanStatus represents the lifecycle state of a scan job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ScanStatus string

// ScanType identifies what a scan extracts.
type ScanType string

const (
	// ScanStatusPending indicates the job is waiting for a runner.
	ScanStatusPending ScanStatus = "pending"
	// ScanStatusRunning indicates the engine is extracting pages.
	ScanStatusRunning ScanStatus = "running"
	// ScanStatusCompleted indicates every page was consumed.
	ScanStatusCompleted ScanStatus = "completed"
	// ScanStatusFailed indicates a job-fatal error stopped extraction.
	ScanStatusFailed ScanStatus = "failed"
	// ScanStatusCancelled indicates an operator stopped the job.
	ScanStatusCancelled ScanStatus = "cancelled"
	// ScanStatusNotFound is the synthetic status reported for unknown scan ids. It is never persisted.
	ScanStatusNotFound ScanStatus = "not_found"

	// ScanTypeDeals extracts CRM deals.
	ScanTypeDeals ScanType = "deals"
)

var (
	// ErrNoScanJobsAvailable is returned when no scan job can be reserved.
	ErrNoScanJobsAvailable = errors.New("no scan jobs available")
	// ErrScanJobNotRunning is returned when a running-only write finds the job in another status.
	ErrScanJobNotRunning = errors.New("scan job is not running")
)

// Valid returns true for persisted statuses.
func (s ScanStatus) Valid() bool {
	switch s {
	case ScanStatusPending, ScanStatusRunning, ScanStatusCompleted, ScanStatusFailed, ScanStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed || s == ScanStatusCancelled
}

// UnmarshalText implements encoding.TextUnmarshaler for query and env parsing.
func (s *ScanStatus) UnmarshalText(text []byte) error {
	v := ScanStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid ScanStatus: %q", v)
	}
	*s = v
	return nil
}

// ActiveScanStatuses lists the non-terminal statuses.
func ActiveScanStatuses() []ScanStatus {
	return []ScanStatus{ScanStatusPending, ScanStatusRunning}
}

// Valid returns true if the ScanType is supported.
func (t ScanType) Valid() bool {
	return t == ScanTypeDeals
}

// ScanJob is the durable lifecycle record of one extraction run.
type ScanJob struct {
	ID                string     `json:"id"                            db:"id"`
	ScanID            string     `json:"scan_id"                       db:"scan_id"`
	Status            ScanStatus `json:"status"                        db:"status"`
	ScanType          ScanType   `json:"scan_type"                     db:"scan_type"`
	Config            ScanConfig `json:"config"                        db:"config"`
	OrganizationID    *string    `json:"organization_id,omitempty"     db:"organization_id"`
	ErrorMessage      *string    `json:"error_message,omitempty"       db:"error_message"`
	TotalItems        int        `json:"total_items"                   db:"total_items"`
	ProcessedItems    int        `json:"processed_items"               db:"processed_items"`
	FailedItems       int        `json:"failed_items"                  db:"failed_items"`
	BatchSize         int        `json:"batch_size"                    db:"batch_size"`
	LastCursor        Cursor     `json:"last_cursor,omitempty"         db:"last_cursor"`
	PagesProcessed    int        `json:"pages_processed"               db:"pages_processed"`
	CancelRequestedAt *time.Time `json:"cancel_requested_at,omitempty" db:"cancel_requested_at"`
	LeaseOwner        *string    `json:"lease_owner,omitempty"         db:"lease_owner"`
	LeaseExpiresAt    *time.Time `json:"lease_expires_at,omitempty"    db:"lease_expires_at"`
	StartedAt         *time.Time `json:"started_at,omitempty"          db:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"        db:"completed_at"`
	CreatedAt         time.Time  `json:"created_at"                    db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"                    db:"updated_at"`
}

// Progress returns the job's counters.
func (j *ScanJob) Progress() Progress {
	return Progress{
		TotalItems:     j.TotalItems,
		ProcessedItems: j.ProcessedItems,
		FailedItems:    j.FailedItems,
	}
}

// SuccessRate is processed_items / max(total_items, 1).
func (j *ScanJob) SuccessRate() float64 {
	return j.Progress().SuccessRate()
}

// View projects the job into its externally visible shape. The credential is never included.
func (j *ScanJob) View() ScanJobView {
	cfg := j.Config.Redacted()
	return ScanJobView{
		ScanID:          j.ScanID,
		JobID:           j.ID,
		Status:          j.Status,
		ScanType:        j.ScanType,
		OrganizationID:  j.OrganizationID,
		ErrorMessage:    j.ErrorMessage,
		TotalItems:      j.TotalItems,
		ProcessedItems:  j.ProcessedItems,
		FailedItems:     j.FailedItems,
		SuccessRate:     j.SuccessRate(),
		BatchSize:       j.BatchSize,
		PagesProcessed:  j.PagesProcessed,
		CancelRequested: j.CancelRequestedAt != nil,
		Config:          &cfg,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		CreatedAt:       &j.CreatedAt,
		UpdatedAt:       &j.UpdatedAt,
	}
}

// Progress groups the counters maintained by the progress tracker.
type Progress struct {
	TotalItems     int `json:"total_items"`
	ProcessedItems int `json:"processed_items"`
	FailedItems    int `json:"failed_items"`
}

// SuccessRate is processed / max(total, 1).
func (p Progress) SuccessRate() float64 {
	return float64(p.ProcessedItems) / float64(max(p.TotalItems, 1))
}

// ScanJobView is the read model returned by status queries.
type ScanJobView struct {
	ScanID          string      `json:"scan_id"`
	JobID           string      `json:"job_id,omitempty"`
	Status          ScanStatus  `json:"status"`
	ScanType        ScanType    `json:"scan_type,omitempty"`
	OrganizationID  *string     `json:"organization_id,omitempty"`
	ErrorMessage    *string     `json:"error_message,omitempty"`
	TotalItems      int         `json:"total_items"`
	ProcessedItems  int         `json:"processed_items"`
	FailedItems     int         `json:"failed_items"`
	SuccessRate     float64     `json:"success_rate"`
	BatchSize       int         `json:"batch_size,omitempty"`
	PagesProcessed  int         `json:"pages_processed"`
	CancelRequested bool        `json:"cancel_requested"`
	Config          *ScanConfig `json:"config,omitempty"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	CreatedAt       *time.Time  `json:"created_at,omitempty"`
	UpdatedAt       *time.Time  `json:"updated_at,omitempty"`
}

// NotFoundView returns the sentinel view for an unknown scan id.
func NotFoundView(scanID string) ScanJobView {
	return ScanJobView{ScanID: scanID, Status: ScanStatusNotFound}
}

// StartScanRequest is the inbound request to start a scan.
type StartScanRequest struct {
	ScanID         string     `json:"scan_id"`
	ScanType       ScanType   `json:"scan_type,omitempty"`
	OrganizationID *string    `json:"organization_id,omitempty"`
	Config         ScanConfig `json:"config"`
}

// Validate checks the request and its config. It does not apply defaults.
func (r *StartScanRequest) Validate() error {
	id := strings.TrimSpace(r.ScanID)
	if id == "" {
		return errors.New("scan_id is required")
	}
	if len(id) > 255 {
		return errors.New("scan_id must be at most 255 characters")
	}
	if r.ScanType != "" && !r.ScanType.Valid() {
		return fmt.Errorf("unsupported scan_type %q", r.ScanType)
	}
	if r.OrganizationID != nil && strings.TrimSpace(*r.OrganizationID) == "" {
		return errors.New("organization_id must not be blank")
	}
	return r.Config.Validate()
}

// ScanTransition describes a compare-and-swap status change.
type ScanTransition struct {
	To           ScanStatus
	At           time.Time
	ErrorMessage *string
	// Progress, when set, is written together with the status.
	Progress *Progress
}

// ProgressUpdate is the page-boundary checkpoint written by the engine.
type ProgressUpdate struct {
	Progress       Progress
	LastCursor     Cursor
	PagesProcessed int
	At             time.Time
}

// ReserveOptions control how a runner claims the next job.
type ReserveOptions struct {
	Owner string
	Lease time.Duration
	// MaxRunningPerOrg caps running jobs per organization (0 means unlimited).
	MaxRunningPerOrg int
	// MaxRunning caps running jobs across every runner sharing the store (0 means unlimited).
	MaxRunning int
}

// ScanListOptions groups parameters for listing scan jobs.
type ScanListOptions struct {
	ScanID         *string
	Status         *ScanStatus
	OrganizationID *string
	Limit          int
	Offset         int
}
