package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryInvalid       ErrorCategory = "invalid"
	CategoryConcurrency   ErrorCategory = "concurrency"
	CategoryConstraint    ErrorCategory = "constraint"
	CategoryRate          ErrorCategory = "rate"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryStorage       ErrorCategory = "storage"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Not found errors
	CodeStatementLineNotFound ErrorCode = "statement_line_not_found"
	CodeLedgerLineNotFound    ErrorCode = "ledger_line_not_found"
	CodeAlreadyReconciled     ErrorCode = "already_reconciled"
	CodeEntityNotFound        ErrorCode = "entity_not_found"
	CodeSessionNotFound       ErrorCode = "session_not_found"

	// Invalid operation errors
	CodeUnbalanced       ErrorCode = "unbalanced"
	CodeMissingAccount   ErrorCode = "missing_account"
	CodeSuspenseAccount  ErrorCode = "suspense_account"
	CodeInvalidField     ErrorCode = "invalid_field"
	CodeInvalidValue     ErrorCode = "invalid_value"
	CodeInvalidLine      ErrorCode = "invalid_line"
	CodeInvalidState     ErrorCode = "invalid_state"
	CodeReadOnlyLine     ErrorCode = "read_only_line"

	// Concurrency errors
	CodeConcurrentModification ErrorCode = "concurrent_modification"

	// Constraint errors
	CodeConstraintViolation ErrorCode = "constraint_violation"
	CodeDuplicateBankAccount ErrorCode = "duplicate_bank_account"

	// Rate errors
	CodeRateUnavailable ErrorCode = "rate_unavailable"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeConfigConflict ErrorCode = "config_conflict"

	// Storage errors
	CodeStorageUnavailable ErrorCode = "storage_unavailable"
	CodeQueryFailed        ErrorCode = "query_failed"
	CodeTransactionFailed  ErrorCode = "transaction_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
	CodeTimeout         ErrorCode = "timeout"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryNotFound:
		return 2
	case CategoryInvalid, CategoryConstraint:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryConcurrency, CategoryRate:
		return 5
	case CategoryStorage:
		return 6
	case CategoryInternal:
		return 7
	default:
		return 1
	}
}

// HTTPStatus maps the error category onto a response status code
func (e *ReconcilerError) HTTPStatus() int {
	switch e.Category {
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryInvalid, CategoryRate:
		return http.StatusUnprocessableEntity
	case CategoryConcurrency, CategoryConstraint:
		return http.StatusConflict
	case CategoryConfiguration:
		return http.StatusBadRequest
	case CategoryStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *ReconcilerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// NotFoundError reports a missing statement line, ledger line or chart entity.
func NotFoundError(code ErrorCode, entity string, id interface{}) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeStatementLineNotFound:
		message = fmt.Sprintf("statement line %v does not exist", id)
		suggestion = "check the statement line id"
	case CodeLedgerLineNotFound:
		message = fmt.Sprintf("ledger line %v does not exist or is no longer open", id)
		suggestion = "refresh the list of outstanding ledger lines"
	case CodeAlreadyReconciled:
		message = fmt.Sprintf("%s %v is already reconciled", entity, id)
		suggestion = "reconciled statement lines cannot be reopened in a session"
	case CodeSessionNotFound:
		message = fmt.Sprintf("session %v does not exist", id)
		suggestion = "open a new session for the statement line"
	default:
		message = fmt.Sprintf("%s %v not found", entity, id)
		suggestion = "verify the chart configuration"
	}

	return New(CategoryNotFound, code, message).
		WithSuggestion(suggestion).
		WithContext("entity", entity).
		WithContext("id", id)
}

// InvalidError reports an operation that is not allowed in the current session state.
func InvalidError(code ErrorCode, detail string) *ReconcilerError {
	var suggestion string

	switch code {
	case CodeUnbalanced:
		suggestion = "add a counterpart so the lines sum to zero"
	case CodeMissingAccount:
		suggestion = "set an account on every line"
	case CodeSuspenseAccount:
		suggestion = "set a partner or an account on the open balance"
	case CodeInvalidField, CodeInvalidValue:
		suggestion = "check the field name and value"
	case CodeReadOnlyLine:
		suggestion = "this line is generated and cannot be edited directly"
	}

	result := New(CategoryInvalid, code, detail)
	if suggestion != "" {
		result.WithSuggestion(suggestion)
	}
	return result
}

// ConcurrentModificationError reports a ledger line that changed after it was matched.
func ConcurrentModificationError(ledgerLineID int64, expected, actual int64) *ReconcilerError {
	return New(CategoryConcurrency, CodeConcurrentModification,
		fmt.Sprintf("ledger line %d was modified concurrently", ledgerLineID)).
		WithSuggestion("reopen the session and match again").
		WithContext("ledger_line_id", ledgerLineID).
		WithContext("expected_version", expected).
		WithContext("actual_version", actual)
}

// ConstraintViolationError reports a persistence constraint failure.
func ConstraintViolationError(code ErrorCode, detail string, err error) *ReconcilerError {
	return build(CategoryConstraint, code, detail, err).
		WithSuggestion("resolve the conflicting record and try again")
}

// RateUnavailableError reports a currency rate missing for a date.
func RateUnavailableError(currency string, date string) *ReconcilerError {
	return New(CategoryRate, CodeRateUnavailable,
		fmt.Sprintf("no rate for %s on %s, using 1", currency, date)).
		WithSuggestion("configure a rate for the currency").
		WithContext("currency", currency).
		WithContext("date", date)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	case CodeConfigConflict:
		message = fmt.Sprintf("configuration conflict with setting '%s': %v", setting, value)
		suggestion = "resolve the conflicting settings or use default values"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// StorageError wraps a failure of the ledger store.
func StorageError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeStorageUnavailable:
		message = fmt.Sprintf("storage unavailable during %s", operation)
		suggestion = "check the database path and permissions"
	case CodeQueryFailed:
		message = fmt.Sprintf("query failed during %s", operation)
		suggestion = "check the database schema"
	case CodeTransactionFailed:
		message = fmt.Sprintf("transaction failed during %s", operation)
		suggestion = "nothing was written, retry the operation"
	default:
		message = fmt.Sprintf("storage error during %s", operation)
		suggestion = "try again"
	}

	return build(CategoryStorage, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeUnexpectedError:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	case CodeTimeout:
		message = fmt.Sprintf("time budget exhausted during %s", operation)
		suggestion = "increase the time budget or reduce the batch size"
	default:
		message = fmt.Sprintf("internal error during %s", operation)
		suggestion = "try again or contact support if the problem persists"
	}

	return build(CategoryInternal, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*ReconcilerError    `json:"errors"`
	SampleErrors []*ReconcilerError    `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ReconcilerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if summary.Errors == nil {
		summary.Errors = []*ReconcilerError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// Utility functions

// IsReconcilerError checks if an error is a ReconcilerError
func IsReconcilerError(err error) bool {
	_, ok := err.(*ReconcilerError)
	return ok
}

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	if re, ok := AsReconcilerError(err); ok {
		return re.Code == code
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, category ErrorCategory) bool {
	if re, ok := AsReconcilerError(err); ok {
		return re.Category == category
	}
	return false
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}
