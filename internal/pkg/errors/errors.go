package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind groups error codes by how a run should react to them
type Kind string

const (
	// KindUpstream is a billing or organization API failure. Runs fail on it.
	KindUpstream Kind = "UPSTREAM_ERROR"
	// KindRejected is a send-guard rejection. Runs complete without sending.
	KindRejected Kind = "SEND_REJECTED"
	// KindTransport is a mail transmission failure.
	KindTransport Kind = "TRANSPORT_ERROR"
	KindConfig    Kind = "CONFIG_ERROR"
	KindStorage   Kind = "STORAGE_ERROR"
	KindInternal  Kind = "INTERNAL_ERROR"
)

// AppError represents an application error with additional context
type AppError struct {
	Code     string      `json:"code"`
	Kind     Kind        `json:"kind"`
	Message  string      `json:"message"`
	Internal error       `json:"-"`
	Details  interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is matches two AppErrors by code, so sentinel comparisons survive WithDetails copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Error codes
const (
	ErrCodeNoValidRecipients = "NO_VALID_RECIPIENTS"
	ErrCodeAllSuppressed     = "ALL_SUPPRESSED"
	ErrCodeQuotaExceeded     = "QUOTA_EXCEEDED"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeDuplicate         = "DUPLICATE_EMAIL"

	ErrCodeCostExplorer  = "COST_EXPLORER_ERROR"
	ErrCodeOrganizations = "ORGANIZATIONS_ERROR"
	ErrCodeSendFailed    = "SEND_FAILED"
	ErrCodeArchiveFailed = "ARCHIVE_FAILED"
	ErrCodeInvalidConfig = "INVALID_CONFIG"
	ErrCodeDatabase      = "DATABASE_ERROR"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// Send-guard rejections. Compare with errors.Is.
var (
	ErrNoValidRecipients = New(ErrCodeNoValidRecipients, KindRejected, "No valid recipient email addresses")
	ErrAllSuppressed     = New(ErrCodeAllSuppressed, KindRejected, "All recipients are on suppression list")
	ErrQuotaExceeded     = New(ErrCodeQuotaExceeded, KindRejected, "SES sending quota exceeded")
	ErrRateLimited       = New(ErrCodeRateLimited, KindRejected, "Hourly email rate limit reached")
	ErrDuplicate         = New(ErrCodeDuplicate, KindRejected, "Duplicate email detected within dedup window")
)

// New creates a new AppError
func New(code string, kind Kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code string, kind Kind, message string) *AppError {
	return &AppError{
		Code:     code,
		Kind:     kind,
		Message:  message,
		Internal: err,
	}
}

// WithDetails returns a copy of the error carrying details
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// KindOf returns the kind of the first AppError in the chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first AppError in the chain, or ErrCodeInternal.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsRejection reports whether err is a send-guard rejection
func IsRejection(err error) bool {
	return err != nil && KindOf(err) == KindRejected
}

// CostExplorerError wraps a Cost Explorer API failure
func CostExplorerError(err error) *AppError {
	return Wrap(err, ErrCodeCostExplorer, KindUpstream, "Failed to query Cost Explorer")
}

// OrganizationsError wraps an Organizations API failure
func OrganizationsError(err error) *AppError {
	return Wrap(err, ErrCodeOrganizations, KindUpstream, "Failed to list organization accounts")
}

// SendFailed wraps a mail transmission failure
func SendFailed(err error) *AppError {
	return Wrap(err, ErrCodeSendFailed, KindTransport, "Failed to send email")
}

// ArchiveFailed wraps a report archive failure
func ArchiveFailed(err error) *AppError {
	return Wrap(err, ErrCodeArchiveFailed, KindStorage, "Failed to archive report")
}

// InvalidConfig creates a configuration error
func InvalidConfig(message string, details interface{}) *AppError {
	return New(ErrCodeInvalidConfig, KindConfig, message).WithDetails(details)
}

// DatabaseError wraps a run history storage failure
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, KindStorage, message)
}

// Internal wraps an unexpected failure
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, KindInternal, message)
}
