// Package mocks provides mock implementations for testing the scan orchestrator.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the ports in internal/core.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockScanJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// ScanJobRepository: Create, GetByID, GetLatestByScanID, List, Transition, UpdateProgress,
// RequestCancel, IsCancelRequested, ReserveNext, Heartbeat
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=scan_job_repository_mock.go github.com/om239903-ai/internship-project/internal/core ScanJobRepository

// DealResultRepository: Upsert, List
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=deal_result_repository_mock.go github.com/om239903-ai/internship-project/internal/core DealResultRepository

// SourceClient: ListAssociations, ListPage
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=source_client_mock.go github.com/om239903-ai/internship-project/internal/core SourceClient

// SourceClientFactory: NewClient
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=source_client_factory_mock.go github.com/om239903-ai/internship-project/internal/core SourceClientFactory

// CancelFlagStore: SetCancelFlag, IsCancelFlagSet, ClearCancelFlag
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cancel_flag_store_mock.go github.com/om239903-ai/internship-project/internal/core CancelFlagStore

// ReaperRepository: FailStalePending, FailAbandonedRunning, DeleteOldScans
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/om239903-ai/internship-project/internal/core ReaperRepository
