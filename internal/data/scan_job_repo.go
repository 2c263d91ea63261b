package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/data/cryptoutil"
	"github.com/om239903-ai/internship-project/internal/data/pgxutil"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
)

// PendingChannel is the LISTEN/NOTIFY channel signalled when a scan job is created.
const PendingChannel = "scan_jobs_pending"

// Advisory lock namespace for reaper operations (two-arg pg_try_advisory_xact_lock).
const (
	advisoryLockReaperMajor         = 7200
	advisoryLockReaperFailPending   = 1
	advisoryLockReaperFailAbandoned = 2
	advisoryLockReaperDelete        = 3

	// Reservations that enforce a running cap hold this lock while counting.
	advisoryLockReserveMajor = 7201
	advisoryLockReserveCaps  = 1
)

const scanJobColumns = `
  id,
  scan_id,
  status,
  scan_type,
  config,
  access_token,
  organization_id,
  error_message,
  total_items,
  processed_items,
  failed_items,
  batch_size,
  last_cursor,
  pages_processed,
  cancel_requested_at,
  lease_owner,
  lease_expires_at,
  started_at,
  completed_at,
  created_at,
  updated_at
`

// ScanJobRepoConfig holds optional collaborators for ScanJobRepo.
type ScanJobRepoConfig struct {
	// Sealer encrypts access tokens at rest. Defaults to cryptoutil.PlainSealer.
	Sealer       cryptoutil.CredentialSealer
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// ScanJobRepo is the Postgres core.ScanJobRepository.
type ScanJobRepo struct {
	DB     *sql.DB
	sealer cryptoutil.CredentialSealer
	clock  TimeProvider
	logger *slog.Logger
}

// NewScanJobRepo creates a ScanJobRepo.
func NewScanJobRepo(db *sql.DB, cfg ScanJobRepoConfig) *ScanJobRepo {
	sealer := cfg.Sealer
	if sealer == nil {
		sealer = cryptoutil.PlainSealer{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanJobRepo{
		DB:     db,
		sealer: sealer,
		clock:  timeProviderOrDefault(cfg.TimeProvider),
		logger: logger.With("component", "scan_job_repo"),
	}
}

// Create inserts a pending job and notifies waiting runners in the same transaction.
// The partial unique index on scan_id turns a concurrent duplicate into a Conflict.
func (r *ScanJobRepo) Create(ctx context.Context, job *model.ScanJob) (*model.ScanJob, error) {
	if job == nil {
		return nil, ErrScanJobRequired
	}
	id := job.ID
	if id == "" {
		id = uuid.NewString()
	}

	cfgJSON, err := json.Marshal(job.Config.Redacted())
	if err != nil {
		return nil, fmt.Errorf("marshal scan config: %w", err)
	}
	sealed, err := r.sealer.Seal(job.Config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}
	now := r.clock.Now().UTC()

	var created *model.ScanJob
	err = pgxutil.WithSQLTx(ctx, r.DB, nil, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO scan_jobs (id, scan_id, status, scan_type, config, access_token, organization_id,
				batch_size, created_at, updated_at)
			VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $8, $8)
			RETURNING `+scanJobColumns,
			id, job.ScanID, job.ScanType, cfgJSON, sealed, job.OrganizationID, job.BatchSize, now,
		)
		var scanErr error
		created, scanErr = r.scanJob(row)
		if scanErr != nil {
			return scanErr
		}
		if _, notifyErr := tx.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, PendingChannel, id); notifyErr != nil {
			return fmt.Errorf("send scan job notification: %w", notifyErr)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return created, nil
}

// GetByID returns the run with id.
func (r *ScanJobRepo) GetByID(ctx context.Context, id string) (*model.ScanJob, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+scanJobColumns+` FROM scan_jobs WHERE id = $1`, id)
	job, err := r.scanJob(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return job, nil
}

// GetLatestByScanID returns the newest run for scanID.
func (r *ScanJobRepo) GetLatestByScanID(ctx context.Context, scanID string) (*model.ScanJob, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+scanJobColumns+`
		FROM scan_jobs
		WHERE scan_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, scanID)
	job, err := r.scanJob(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return job, nil
}

type scanFilterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *scanFilterQueryBuilder) addFilter(column string, value any) {
	b.query += fmt.Sprintf(" AND %s = $%d", column, b.argIdx)
	b.args = append(b.args, value)
	b.argIdx++
}

func buildScanListQuery(opts model.ScanListOptions) (string, []any) {
	b := &scanFilterQueryBuilder{
		query:  `SELECT ` + scanJobColumns + ` FROM scan_jobs WHERE 1=1`,
		argIdx: 1,
	}
	if opts.ScanID != nil {
		b.addFilter("scan_id", *opts.ScanID)
	}
	if opts.Status != nil {
		b.addFilter("status", string(*opts.Status))
	}
	if opts.OrganizationID != nil {
		b.addFilter("organization_id", *opts.OrganizationID)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	b.query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", b.argIdx, b.argIdx+1)
	b.args = append(b.args, limit, max(opts.Offset, 0))
	return b.query, b.args
}

// List returns runs newest first.
func (r *ScanJobRepo) List(ctx context.Context, opts model.ScanListOptions) ([]*model.ScanJob, error) {
	query, args := buildScanListQuery(opts)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer rows.Close()

	var out []*model.ScanJob
	for rows.Next() {
		job, scanErr := r.scanJob(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}

// Transition applies tr when the stored status is one of from.
func (r *ScanJobRepo) Transition(
	ctx context.Context,
	id string,
	from []model.ScanStatus,
	tr model.ScanTransition,
) (*model.ScanJob, error) {
	var total, processed, failed *int
	if tr.Progress != nil {
		total, processed, failed = &tr.Progress.TotalItems, &tr.Progress.ProcessedItems, &tr.Progress.FailedItems
	}

	row := r.DB.QueryRowContext(ctx, `
		UPDATE scan_jobs
		SET status = $2,
		    updated_at = $3,
		    started_at = CASE WHEN $2 = 'running' THEN COALESCE(started_at, $3) ELSE started_at END,
		    completed_at = CASE WHEN $4 THEN $3 ELSE completed_at END,
		    lease_owner = CASE WHEN $4 THEN NULL ELSE lease_owner END,
		    lease_expires_at = CASE WHEN $4 THEN NULL ELSE lease_expires_at END,
		    error_message = COALESCE($5, error_message),
		    total_items = COALESCE($6, total_items),
		    processed_items = COALESCE($7, processed_items),
		    failed_items = COALESCE($8, failed_items)
		WHERE id = $1 AND status = ANY($9::text[])
		RETURNING `+scanJobColumns,
		id, string(tr.To), tr.At.UTC(), tr.To.IsTerminal(), tr.ErrorMessage, total, processed, failed, statusArray(from),
	)
	job, err := r.scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missOrConflict(ctx, id)
	}
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return job, nil
}

// UpdateProgress writes page-boundary counters while the job is running.
func (r *ScanJobRepo) UpdateProgress(ctx context.Context, id string, update model.ProgressUpdate) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE scan_jobs
		SET total_items = $2,
		    processed_items = $3,
		    failed_items = $4,
		    last_cursor = $5,
		    pages_processed = $6,
		    updated_at = $7
		WHERE id = $1 AND status = 'running'`,
		id,
		update.Progress.TotalItems,
		update.Progress.ProcessedItems,
		update.Progress.FailedItems,
		string(update.LastCursor),
		update.PagesProcessed,
		update.At.UTC(),
	)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if missErr := r.missOrConflict(ctx, id); apperrors.IsNotFound(missErr) {
			return missErr
		}
		return model.ErrScanJobNotRunning
	}
	return nil
}

// RequestCancel sets cancel_requested_at on a running job, keeping the first request time.
func (r *ScanJobRepo) RequestCancel(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE scan_jobs
		SET cancel_requested_at = COALESCE(cancel_requested_at, $2),
		    updated_at = $2
		WHERE id = $1 AND status = 'running'`, id, at.UTC())
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	if missErr := r.missOrConflict(ctx, id); apperrors.IsNotFound(missErr) {
		return false, missErr
	}
	return false, nil
}

// IsCancelRequested reads the durable cancel flag.
func (r *ScanJobRepo) IsCancelRequested(ctx context.Context, id string) (bool, error) {
	var requested bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT cancel_requested_at IS NOT NULL FROM scan_jobs WHERE id = $1`, id,
	).Scan(&requested)
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	return requested, nil
}

// reserveNextSQL claims the oldest eligible job. Pending jobs respect the cluster-wide running
// cap ($5) and the per-organization cap ($3); zero disables either. Running jobs are eligible
// only once their lease expired.
const reserveNextSQL = `
  WITH cte AS (
    SELECT j.id FROM scan_jobs j
    WHERE (
        j.status = 'pending'
        AND (
          $5 = 0
          OR (
            SELECT count(*) FROM scan_jobs r
            WHERE r.status = 'running'
              AND (r.lease_expires_at IS NULL OR r.lease_expires_at > $1)
          ) < $5
        )
        AND (
          $3 = 0
          OR j.organization_id IS NULL
          OR (
            SELECT count(*) FROM scan_jobs r
            WHERE r.organization_id = j.organization_id
              AND r.status = 'running'
              AND (r.lease_expires_at IS NULL OR r.lease_expires_at > $1)
          ) < $3
        )
      )
      OR (j.status = 'running' AND j.lease_expires_at <= $1)
    ORDER BY j.created_at ASC, j.id ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE scan_jobs j
  SET status = 'running',
      started_at = COALESCE(j.started_at, $1),
      lease_owner = $2,
      lease_expires_at = $4,
      updated_at = $1
  FROM cte
  WHERE j.id = cte.id
  RETURNING ` + `j.id, j.scan_id, j.status, j.scan_type, j.config, j.access_token, j.organization_id,
    j.error_message, j.total_items, j.processed_items, j.failed_items, j.batch_size, j.last_cursor,
    j.pages_processed, j.cancel_requested_at, j.lease_owner, j.lease_expires_at, j.started_at,
    j.completed_at, j.created_at, j.updated_at`

// ReserveNext claims the next pending job or reclaims one whose lease lapsed.
//
// When a running cap is set, concurrent reservations are serialized with a transaction-scoped
// advisory lock. The reservation statement runs after the lock is granted, so under READ
// COMMITTED its snapshot includes every reservation committed before it and the count
// subqueries cannot both pass for the same slot.
func (r *ScanJobRepo) ReserveNext(ctx context.Context, opts model.ReserveOptions) (*model.ScanJob, error) {
	now := r.clock.Now().UTC()
	args := []any{now, opts.Owner, opts.MaxRunningPerOrg, now.Add(opts.Lease), opts.MaxRunning}

	var (
		job *model.ScanJob
		err error
	)
	if opts.MaxRunningPerOrg <= 0 && opts.MaxRunning <= 0 {
		job, err = r.scanJob(r.DB.QueryRowContext(ctx, reserveNextSQL, args...))
	} else {
		err = pgxutil.WithSQLTx(ctx, r.DB, nil, func(tx *sql.Tx) error {
			if _, lockErr := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`,
				advisoryLockReserveMajor, advisoryLockReserveCaps); lockErr != nil {
				return fmt.Errorf("acquire reservation lock: %w", lockErr)
			}
			var scanErr error
			job, scanErr = r.scanJob(tx.QueryRowContext(ctx, reserveNextSQL, args...))
			return scanErr
		})
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoScanJobsAvailable
	}
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return job, nil
}

// Heartbeat extends the lease held by owner.
func (r *ScanJobRepo) Heartbeat(ctx context.Context, id, owner string, lease time.Duration) (bool, error) {
	now := r.clock.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE scan_jobs
		SET lease_expires_at = $3
		WHERE id = $1 AND status = 'running' AND lease_owner = $2`, id, owner, now.Add(lease))
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// WaitForPending blocks until a job is created or ctx ends.
func (r *ScanJobRepo) WaitForPending(ctx context.Context) error {
	_, err := pgxutil.WaitForNotification(ctx, r.DB, PendingChannel)
	return err
}

// FailStalePending marks pending jobs older than maxAge as failed.
func (r *ScanJobRepo) FailStalePending(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	now := r.clock.Now().UTC()
	return r.withReaperLock(ctx, advisoryLockReaperFailPending, `
		UPDATE scan_jobs
		SET status = 'failed',
		    error_message = 'scan timed out waiting for a runner',
		    completed_at = $1,
		    updated_at = $1
		WHERE id IN (
		  SELECT id FROM scan_jobs
		  WHERE status = 'pending' AND created_at < $2
		  ORDER BY created_at
		  LIMIT $3
		)`, now, now.Add(-maxAge), batchSize)
}

// FailAbandonedRunning marks running jobs whose lease expired more than maxAge ago as failed.
func (r *ScanJobRepo) FailAbandonedRunning(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	now := r.clock.Now().UTC()
	return r.withReaperLock(ctx, advisoryLockReaperFailAbandoned, `
		UPDATE scan_jobs
		SET status = 'failed',
		    error_message = 'scan abandoned by its runner',
		    completed_at = $1,
		    updated_at = $1,
		    lease_owner = NULL,
		    lease_expires_at = NULL
		WHERE id IN (
		  SELECT id FROM scan_jobs
		  WHERE status = 'running' AND lease_expires_at < $2
		  ORDER BY lease_expires_at
		  LIMIT $3
		)`, now, now.Add(-maxAge), batchSize)
}

// DeleteOldScans deletes terminal runs older than MaxAge. Results cascade.
func (r *ScanJobRepo) DeleteOldScans(ctx context.Context, params core.DeleteOldScansParams) (int64, error) {
	if !params.Status.IsTerminal() {
		return 0, fmt.Errorf("invalid scan status for deletion: %s", params.Status)
	}
	cutoff := r.clock.Now().UTC().Add(-params.MaxAge)
	return r.withReaperLock(ctx, advisoryLockReaperDelete, `
		DELETE FROM scan_jobs
		WHERE id IN (
		  SELECT id FROM scan_jobs
		  WHERE status = $1 AND COALESCE(completed_at, updated_at) < $2
		  ORDER BY COALESCE(completed_at, updated_at)
		  LIMIT $3
		)`, string(params.Status), cutoff, params.BatchSize)
}

func (r *ScanJobRepo) withReaperLock(ctx context.Context, minor int, query string, args ...any) (int64, error) {
	var affected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, nil, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1, $2)`,
			advisoryLockReaperMajor, minor).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return affected, nil
}

// missOrConflict tells a missing row apart from a status mismatch after a guarded write.
func (r *ScanJobRepo) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM scan_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return apperrors.MapDBError(err)
	}
	if !exists {
		return apperrors.NotFoundf("scan job %s not found", id)
	}
	return apperrors.Conflict("scan job status changed concurrently")
}

func statusArray(statuses []model.ScanStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ScanJobRepo) scanJob(row rowScanner) (*model.ScanJob, error) {
	var (
		job          model.ScanJob
		cfgJSON      []byte
		sealed       string
		org, errMsg  sql.NullString
		leaseOwner   sql.NullString
		cursor       string
		cancelAt     sql.NullTime
		leaseExpires sql.NullTime
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)
	if err := row.Scan(
		&job.ID,
		&job.ScanID,
		&job.Status,
		&job.ScanType,
		&cfgJSON,
		&sealed,
		&org,
		&errMsg,
		&job.TotalItems,
		&job.ProcessedItems,
		&job.FailedItems,
		&job.BatchSize,
		&cursor,
		&job.PagesProcessed,
		&cancelAt,
		&leaseOwner,
		&leaseExpires,
		&startedAt,
		&completedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(cfgJSON) > 0 {
		if err := json.Unmarshal(cfgJSON, &job.Config); err != nil {
			return nil, fmt.Errorf("decode scan config for %s: %w", job.ID, err)
		}
	}
	token, err := r.sealer.Open(sealed)
	if err != nil {
		// The sealed value is never logged.
		return nil, fmt.Errorf("open access token for %s: %w", job.ID, err)
	}
	job.Config.AccessToken = token
	job.LastCursor = model.Cursor(cursor)
	job.OrganizationID = nullStringPtr(org)
	job.ErrorMessage = nullStringPtr(errMsg)
	job.LeaseOwner = nullStringPtr(leaseOwner)
	job.CancelRequestedAt = nullTimePtr(cancelAt)
	job.LeaseExpiresAt = nullTimePtr(leaseExpires)
	job.StartedAt = nullTimePtr(startedAt)
	job.CompletedAt = nullTimePtr(completedAt)
	return &job, nil
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

var (
	_ core.ScanJobRepository = (*ScanJobRepo)(nil)
	_ core.ReaperRepository  = (*ScanJobRepo)(nil)
)
