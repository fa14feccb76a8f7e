package core

// Error codes
const (
	ErrNotFound          = "NOT_FOUND"
	ErrValidationFailed  = "VALIDATION_FAILED"
	ErrNotReady          = "ARTIFACT_NOT_READY"
	ErrQueueFull         = "QUEUE_FULL"
	ErrStorageDisabled   = "STORAGE_DISABLED"
	ErrRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrInvalidContent    = "INVALID_CONTENT_TYPE"
	ErrInvalidRequest    = "INVALID_REQUEST"
	ErrInternalError     = "INTERNAL_ERROR"
	ErrUnauthorized      = "UNAUTHORIZED"
)
