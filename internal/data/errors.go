package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrTemplateNotFound     = errors.New("template not found")
	ErrContactNotFound      = errors.New("contact not found")
	ErrEnqueueRequestNil    = errors.New("enqueue request is required")
	ErrOwnerRequired        = errors.New("claim owner is required")
	ErrUnsupportedChannel   = errors.New("unsupported channel")
	ErrNonPositiveBatchSize = errors.New("batch size must be positive")
)
