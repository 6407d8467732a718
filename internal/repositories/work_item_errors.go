package repositories

import "fmt"

// WorkItemErrorCode enumerates failure reasons for schedule writes.
type WorkItemErrorCode string

const (
	// WorkItemErrorInvalidInput indicates the caller supplied invalid arguments.
	WorkItemErrorInvalidInput WorkItemErrorCode = "work_item_invalid_input"
	// WorkItemErrorStatusChanged indicates the stored status no longer matches the expected precondition.
	WorkItemErrorStatusChanged WorkItemErrorCode = "work_item_status_changed"
)

// WorkItemError wraps schedule write failures with machine readable codes.
type WorkItemError struct {
	Op      string
	Code    WorkItemErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *WorkItemError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *WorkItemError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConflict reports whether the write lost a race with another update.
func (e *WorkItemError) IsConflict() bool {
	return e != nil && e.Code == WorkItemErrorStatusChanged
}

// NewWorkItemError constructs a typed work item error.
func NewWorkItemError(op string, code WorkItemErrorCode, message string, err error) *WorkItemError {
	if message == "" {
		message = string(code)
	}
	return &WorkItemError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
