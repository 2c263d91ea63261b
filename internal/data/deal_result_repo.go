package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
)

const dealResultColumns = `
  scan_job_id,
  deal_id,
  deal_name,
  amount,
  currency,
  deal_stage,
  deal_stage_label,
  pipeline_id,
  pipeline_label,
  close_date,
  created_date,
  last_modified_date,
  owner_id,
  owner_email,
  deal_type,
  archived,
  deal_url,
  page_number,
  properties,
  associations,
  created_at,
  updated_at
`

// upsertDealResultSQL merges incoming non-null columns over the stored row. JSONB maps are
// merged key-wise. xmax = 0 only holds for a freshly inserted tuple.
const upsertDealResultSQL = `
  INSERT INTO deal_results (` + dealResultColumns + `)
  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $21)
  ON CONFLICT (scan_job_id, deal_id) DO UPDATE SET
    deal_name          = COALESCE(EXCLUDED.deal_name, deal_results.deal_name),
    amount             = COALESCE(EXCLUDED.amount, deal_results.amount),
    currency           = COALESCE(EXCLUDED.currency, deal_results.currency),
    deal_stage         = COALESCE(EXCLUDED.deal_stage, deal_results.deal_stage),
    deal_stage_label   = COALESCE(EXCLUDED.deal_stage_label, deal_results.deal_stage_label),
    pipeline_id        = COALESCE(EXCLUDED.pipeline_id, deal_results.pipeline_id),
    pipeline_label     = COALESCE(EXCLUDED.pipeline_label, deal_results.pipeline_label),
    close_date         = COALESCE(EXCLUDED.close_date, deal_results.close_date),
    created_date       = COALESCE(EXCLUDED.created_date, deal_results.created_date),
    last_modified_date = COALESCE(EXCLUDED.last_modified_date, deal_results.last_modified_date),
    owner_id           = COALESCE(EXCLUDED.owner_id, deal_results.owner_id),
    owner_email        = COALESCE(EXCLUDED.owner_email, deal_results.owner_email),
    deal_type          = COALESCE(EXCLUDED.deal_type, deal_results.deal_type),
    archived           = COALESCE(EXCLUDED.archived, deal_results.archived),
    deal_url           = COALESCE(EXCLUDED.deal_url, deal_results.deal_url),
    page_number        = COALESCE(EXCLUDED.page_number, deal_results.page_number),
    properties         = deal_results.properties || EXCLUDED.properties,
    associations       = deal_results.associations || EXCLUDED.associations,
    updated_at         = EXCLUDED.updated_at
  RETURNING (xmax = 0) AS inserted`

// DealResultRepo is the Postgres core.DealResultRepository.
type DealResultRepo struct {
	DB    *sql.DB
	clock TimeProvider
}

// NewDealResultRepo creates a DealResultRepo.
func NewDealResultRepo(db *sql.DB, tp TimeProvider) *DealResultRepo {
	return &DealResultRepo{DB: db, clock: timeProviderOrDefault(tp)}
}

// Upsert inserts res or merges it into the existing (scan_job_id, deal_id) row.
func (r *DealResultRepo) Upsert(ctx context.Context, res *model.DealResult) (model.UpsertOutcome, error) {
	if res == nil || res.ScanJobID == "" || res.DealID == "" {
		return "", ErrDealResultKey
	}

	props, err := marshalJSONObject(res.Properties)
	if err != nil {
		return "", fmt.Errorf("marshal properties for deal %s: %w", res.DealID, err)
	}
	assocs, err := marshalJSONObject(res.Associations)
	if err != nil {
		return "", fmt.Errorf("marshal associations for deal %s: %w", res.DealID, err)
	}

	var inserted bool
	err = r.DB.QueryRowContext(ctx, upsertDealResultSQL,
		res.ScanJobID,
		res.DealID,
		res.Name,
		res.Amount,
		res.Currency,
		res.Stage,
		res.StageLabel,
		res.PipelineID,
		res.PipelineLabel,
		res.CloseDate,
		res.CreatedDate,
		res.LastModifiedDate,
		res.OwnerID,
		res.OwnerEmail,
		res.DealType,
		res.Archived,
		res.DealURL,
		res.PageNumber,
		props,
		assocs,
		r.clock.Now().UTC(),
	).Scan(&inserted)
	if err != nil {
		return "", apperrors.MapDBError(err)
	}
	if inserted {
		return model.UpsertInserted, nil
	}
	return model.UpsertUpdated, nil
}

func buildDealResultWhere(q model.DealResultQuery) (string, []any) {
	b := &scanFilterQueryBuilder{query: ` WHERE scan_job_id = $1`, args: []any{q.ScanJobID}, argIdx: 2}
	if q.Stage != "" {
		b.addFilter("deal_stage", q.Stage)
	}
	if q.Pipeline != "" {
		b.addFilter("pipeline_id", q.Pipeline)
	}
	if q.Archived != nil {
		b.query += fmt.Sprintf(" AND COALESCE(archived, false) = $%d", b.argIdx)
		b.args = append(b.args, *q.Archived)
		b.argIdx++
	}
	return b.query, b.args
}

// List returns one page of results ordered by insertion, and the total match count.
func (r *DealResultRepo) List(ctx context.Context, q model.DealResultQuery) ([]*model.DealResult, int, error) {
	where, args := buildDealResultWhere(q)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM deal_results`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.MapDBError(err)
	}

	query := `SELECT ` + dealResultColumns + ` FROM deal_results` + where + ` ORDER BY created_at ASC, deal_id ASC`
	if q.PageSize > 0 {
		offset := max(q.Page-1, 0) * q.PageSize
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, q.PageSize, offset)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.MapDBError(err)
	}
	defer rows.Close()

	out := make([]*model.DealResult, 0)
	for rows.Next() {
		res, scanErr := scanDealResult(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.MapDBError(err)
	}
	return out, total, nil
}

func scanDealResult(row rowScanner) (*model.DealResult, error) {
	var (
		res                            model.DealResult
		name, currency, stage          sql.NullString
		stageLabel, pipeline, plLabel  sql.NullString
		ownerID, ownerEmail, dealType  sql.NullString
		dealURL                        sql.NullString
		closeDate, createdDate, lastMd sql.NullTime
		archived                       sql.NullBool
		page                           sql.NullInt64
		amount                         decimal.NullDecimal
		props, assocs                  []byte
	)
	if err := row.Scan(
		&res.ScanJobID,
		&res.DealID,
		&name,
		&amount,
		&currency,
		&stage,
		&stageLabel,
		&pipeline,
		&plLabel,
		&closeDate,
		&createdDate,
		&lastMd,
		&ownerID,
		&ownerEmail,
		&dealType,
		&archived,
		&dealURL,
		&page,
		&props,
		&assocs,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		return nil, err
	}

	res.Name = nullStringPtr(name)
	res.Amount = amount
	res.Currency = nullStringPtr(currency)
	res.Stage = nullStringPtr(stage)
	res.StageLabel = nullStringPtr(stageLabel)
	res.PipelineID = nullStringPtr(pipeline)
	res.PipelineLabel = nullStringPtr(plLabel)
	res.CloseDate = nullTimePtr(closeDate)
	res.CreatedDate = nullTimePtr(createdDate)
	res.LastModifiedDate = nullTimePtr(lastMd)
	res.OwnerID = nullStringPtr(ownerID)
	res.OwnerEmail = nullStringPtr(ownerEmail)
	res.DealType = nullStringPtr(dealType)
	res.DealURL = nullStringPtr(dealURL)
	if archived.Valid {
		v := archived.Bool
		res.Archived = &v
	}
	if page.Valid {
		v := int(page.Int64)
		res.PageNumber = &v
	}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &res.Properties); err != nil {
			return nil, fmt.Errorf("decode properties for deal %s: %w", res.DealID, err)
		}
	}
	if len(assocs) > 0 {
		if err := json.Unmarshal(assocs, &res.Associations); err != nil {
			return nil, fmt.Errorf("decode associations for deal %s: %w", res.DealID, err)
		}
	}
	return &res, nil
}

func marshalJSONObject[M ~map[string]V, V any](m M) ([]byte, error) {
	if len(m) == 0 {
		return []byte(`{}`), nil
	}
	return json.Marshal(m)
}

var _ core.DealResultRepository = (*DealResultRepo)(nil)
