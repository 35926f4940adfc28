package ldif

import (
	"errors"
	"fmt"
)

const (
	CodeDNMissingField    = "E_DN_MISSING_FIELD"
	CodeDNUnresolved      = "E_DN_UNRESOLVED_PLACEHOLDER"
	CodeDNInvalidFormat   = "E_DN_INVALID_FORMAT"
	CodeEntryInvalid      = "E_ENTRY_INVALID"
	CodeConfigInvalid     = "E_CONFIG_INVALID"
	CodeOutputPathInvalid = "E_OUTPUT_PATH_INVALID"
	CodeFileWriteFailed   = "E_FILE_WRITE_FAILED"
	CodeSinkClosed        = "E_SINK_CLOSED"
)

// Error wraps LDIF sink failures with retryability hints.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error         { return e.Err }
func (e *Error) CodeValue() string     { return e.Code }
func (e *Error) RetryableStatus() bool { return e.Retryable }

func wrapError(code string, retryable bool, err error) *Error {
	if err == nil {
		return &Error{Code: code, Retryable: retryable}
	}
	return &Error{Code: code, Retryable: retryable, Err: err}
}

// DNError reports a DN construction failure. It is a record-level error: the
// record is skipped and counted, the stream continues.
type DNError struct {
	Code     string // CodeDNMissingField, CodeDNUnresolved or CodeDNInvalidFormat
	Field    string // offending placeholder field, for CodeDNMissingField
	Template string
	DN       string // resolved DN, when resolution got that far
	Reason   string
}

func (e *DNError) Error() string {
	switch e.Code {
	case CodeDNMissingField:
		return fmt.Sprintf("%s: field %q is absent or null (template %q)", e.Code, e.Field, e.Template)
	case CodeDNUnresolved:
		return fmt.Sprintf("%s: unresolved placeholders in %q", e.Code, e.DN)
	default:
		if e.Reason != "" {
			return fmt.Sprintf("%s: %s: %q", e.Code, e.Reason, e.DN)
		}
		return fmt.Sprintf("%s: %q", e.Code, e.DN)
	}
}

// AsDNError unwraps err into a *DNError when it is one.
func AsDNError(err error) (*DNError, bool) {
	var dnErr *DNError
	if errors.As(err, &dnErr) {
		return dnErr, true
	}
	return nil, false
}
