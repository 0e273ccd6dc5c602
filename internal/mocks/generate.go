// Package mocks provides gomock implementations of the core ports for tests.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	queue := mocks.NewMockJobQueue(ctrl)
//	queue.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(core.ClaimResult{Claimed: true}, nil)
package mocks

// CacheRepository: Set, Get, Delete, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/academic360/notifier/internal/core CacheRepository

// JobQueue: FetchBatch, Claim, ExtendClaim, ClaimBatch, Complete, Fail, RecordRetry, Stats
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_queue_mock.go github.com/academic360/notifier/internal/core JobQueue

// ReaperRepository: ReleaseExpiredClaims
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/academic360/notifier/internal/core ReaperRepository

// TemplateRepository: GetByID
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=template_repository_mock.go github.com/academic360/notifier/internal/core TemplateRepository

// FieldSequenceRepository: ListEnabled
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=field_sequence_repository_mock.go github.com/academic360/notifier/internal/core FieldSequenceRepository

// ContentRepository: ListByNotification
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=content_repository_mock.go github.com/academic360/notifier/internal/core ContentRepository

// ContactDirectory: Lookup, ListStagingRecipients
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=contact_directory_mock.go github.com/academic360/notifier/internal/core ContactDirectory

// NotificationEnqueuer: Enqueue
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notification_enqueuer_mock.go github.com/academic360/notifier/internal/core NotificationEnqueuer

// DeliveryClient: Send
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=delivery_client_mock.go github.com/academic360/notifier/internal/core DeliveryClient
