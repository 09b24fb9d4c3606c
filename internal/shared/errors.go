package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Storage and service errors
	ErrStorage            = fmt.Errorf("storage request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrDraftNotFound      = fmt.Errorf("draft not found")
	ErrClipNotFound       = fmt.Errorf("clip not found")
	ErrObjectNotFound     = fmt.Errorf("object not found")
	ErrSyncIncomplete     = fmt.Errorf("sync incomplete")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
