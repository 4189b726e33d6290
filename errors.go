package corebank

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a ledger error the way of the design groups them:
// callers switch on Kind to pick an HTTP status or a retry policy, not
// on the error message.
type Kind string

const (
	KindNotFound Kind = "not_found"
	KindBusinessRule Kind = "business_rule"
	KindConflict Kind = "conflict"
	KindInvariantViolation Kind = "invariant_violation"
	KindTransient Kind = "transient"
	KindConfiguration Kind = "configuration"
	KindIOError Kind = "io_error"
)

// Error is the single error type raised by every component in this
// module. Code is a short, stable identifier ("Unbalanced",
// "AlreadyExecuted",...) that callers can match with errors.As and a
// type switch on Code; Kind picks the transport-level treatment.
type Error struct {
	Kind Kind
	Code string
	Message string
	Err error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &Error{Code: "Unbalanced"}) match on Code alone,
// which is how callers test for a specific failure without caring about
// the wrapped cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return true
}

func newErr(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: cause}
}

func NotFoundf(code, format string, args...interface{}) *Error {
	return newErr(KindNotFound, code, fmt.Sprintf(format, args...), nil)
}

func BusinessRulef(code, format string, args...interface{}) *Error {
	return newErr(KindBusinessRule, code, fmt.Sprintf(format, args...), nil)
}

func Conflictf(code, format string, args...interface{}) *Error {
	return newErr(KindConflict, code, fmt.Sprintf(format, args...), nil)
}

func InvariantViolationf(code, format string, args...interface{}) *Error {
	return newErr(KindInvariantViolation, code, fmt.Sprintf(format, args...), nil)
}

func Transientf(code string, cause error, format string, args...interface{}) *Error {
	return newErr(KindTransient, code, fmt.Sprintf(format, args...), cause)
}

func Configurationf(code, format string, args...interface{}) *Error {
	return newErr(KindConfiguration, code, fmt.Sprintf(format, args...), nil)
}

func IOErrorf(code string, cause error, format string, args...interface{}) *Error {
	return newErr(KindIOError, code, fmt.Sprintf(format, args...), cause)
}

// Well-known codes referenced directly by name across components and by
// the HTTP layer's tests.
const (
	CodeUnbalanced = "Unbalanced"
	CodeAccountNotFound = "AccountNotFound"
	CodeAccountInactive = "AccountInactive"
	CodeInsufficientBalance = "InsufficientBalance"
	CodeNotEntry = "NotEntry"
	CodeAlreadyVerified = "AlreadyVerified"
	CodeOriginalNotFound = "OriginalNotFound"
	CodeAlreadyExecuted = "AlreadyExecuted"
	CodePreviousJobNotDone = "PreviousJobNotDone"
	CodeTrialBalanceImbalanced = "TrialBalanceImbalanced"
	CodeNotConfigured = "NotConfigured"
	CodeNoRateConfigured = "NoRateConfigured"
	CodeBalanceRowMissing = "BalanceRowMissing"
	CodeGLNotConfigured = "GLNotConfigured"
	CodeAccountSeqExhausted = "AccountSeqExhausted"
	CodeAccountClosureNonZero = "AccountClosureNonZero"
	CodeDeadlock = "Deadlock"
	CodeReportWrite = "ReportWriteFailed"
	CodeUnknownJob = "UnknownJob"
)

// HTTPStatus maps a Kind to the status code specifies for admin
// endpoints.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindBusinessRule, KindConfiguration:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindIOError, KindInvariantViolation:
		return http.StatusInternalServerError
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AsLedgerError extracts the ledger *Error from an error chain, if any.
func AsLedgerError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
