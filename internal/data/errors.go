package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrScanJobRequired   = errors.New("scan job is required")
	ErrDealResultKey     = errors.New("deal result requires scan_job_id and deal_id")
	ErrRedisNotAvailable = errors.New("redis client is not configured")
)
