package model

import (
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is assumed when a deal carries no currency code.
const DefaultCurrency = "USD"

// UpsertOutcome reports whether an upsert created or updated a row.
type UpsertOutcome string

const (
	// UpsertInserted indicates a new row was created.
	UpsertInserted UpsertOutcome = "inserted"
	// UpsertUpdated indicates an existing row was merged.
	UpsertUpdated UpsertOutcome = "updated"
)

// DealResult is one extracted deal, keyed by (ScanJobID, DealID).
// Nil pointer fields mean "no value observed" and never overwrite stored values.
type DealResult struct {
	ScanJobID        string              `json:"scan_job_id"                  db:"scan_job_id"`
	DealID           string              `json:"deal_id"                      db:"deal_id"`
	Name             *string             `json:"deal_name,omitempty"          db:"deal_name"`
	Amount           decimal.NullDecimal `json:"amount"                       db:"amount"`
	Currency         *string             `json:"currency,omitempty"           db:"currency"`
	Stage            *string             `json:"deal_stage,omitempty"         db:"deal_stage"`
	StageLabel       *string             `json:"deal_stage_label,omitempty"   db:"deal_stage_label"`
	PipelineID       *string             `json:"pipeline_id,omitempty"        db:"pipeline_id"`
	PipelineLabel    *string             `json:"pipeline_label,omitempty"     db:"pipeline_label"`
	CloseDate        *time.Time          `json:"close_date,omitempty"         db:"close_date"`
	CreatedDate      *time.Time          `json:"created_date,omitempty"       db:"created_date"`
	LastModifiedDate *time.Time          `json:"last_modified_date,omitempty" db:"last_modified_date"`
	OwnerID          *string             `json:"owner_id,omitempty"           db:"owner_id"`
	OwnerEmail       *string             `json:"owner_email,omitempty"        db:"owner_email"`
	DealType         *string             `json:"deal_type,omitempty"          db:"deal_type"`
	Archived         *bool               `json:"archived,omitempty"           db:"archived"`
	DealURL          *string             `json:"deal_url,omitempty"           db:"deal_url"`
	PageNumber       *int                `json:"page_number,omitempty"        db:"page_number"`
	Properties       map[string]any      `json:"properties,omitempty"         db:"properties"`
	Associations     map[string][]string `json:"associations,omitempty"       db:"associations"`
	CreatedAt        time.Time           `json:"created_at"                   db:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"                   db:"updated_at"`
}

// Key returns the composite identity of the row.
func (r *DealResult) Key() string {
	return r.ScanJobID + "/" + r.DealID
}

// MergeFrom overlays every non-nil field of in onto r. Property and association maps are
// merged per key, with in winning. Timestamps are left to the caller.
func (r *DealResult) MergeFrom(in *DealResult) {
	mergePtr(&r.Name, in.Name)
	if in.Amount.Valid {
		r.Amount = in.Amount
	}
	mergePtr(&r.Currency, in.Currency)
	mergePtr(&r.Stage, in.Stage)
	mergePtr(&r.StageLabel, in.StageLabel)
	mergePtr(&r.PipelineID, in.PipelineID)
	mergePtr(&r.PipelineLabel, in.PipelineLabel)
	mergePtr(&r.CloseDate, in.CloseDate)
	mergePtr(&r.CreatedDate, in.CreatedDate)
	mergePtr(&r.LastModifiedDate, in.LastModifiedDate)
	mergePtr(&r.OwnerID, in.OwnerID)
	mergePtr(&r.OwnerEmail, in.OwnerEmail)
	mergePtr(&r.DealType, in.DealType)
	mergePtr(&r.Archived, in.Archived)
	mergePtr(&r.DealURL, in.DealURL)
	mergePtr(&r.PageNumber, in.PageNumber)

	if len(in.Properties) > 0 {
		if r.Properties == nil {
			r.Properties = make(map[string]any, len(in.Properties))
		}
		maps.Copy(r.Properties, in.Properties)
	}
	if len(in.Associations) > 0 {
		if r.Associations == nil {
			r.Associations = make(map[string][]string, len(in.Associations))
		}
		for kind, ids := range in.Associations {
			r.Associations[kind] = slices.Clone(ids)
		}
	}
}

// Clone returns a deep copy.
func (r *DealResult) Clone() *DealResult {
	cp := *r
	cp.Properties = maps.Clone(r.Properties)
	if r.Associations != nil {
		cp.Associations = make(map[string][]string, len(r.Associations))
		for kind, ids := range r.Associations {
			cp.Associations[kind] = slices.Clone(ids)
		}
	}
	return &cp
}

func mergePtr[T any](dst **T, src *T) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

// DealResultQuery selects a page of results for one scan job.
type DealResultQuery struct {
	ScanJobID string
	Stage     string
	Pipeline  string
	Archived  *bool
	Page      int
	PageSize  int
}

// DealResultPage is the paginated results view. Status travels with the rows because results
// are readable while the job is still running.
type DealResultPage struct {
	Job      ScanJobView   `json:"job"`
	Results  []*DealResult `json:"results"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int           `json:"total"`
	HasMore  bool          `json:"has_more"`
}
