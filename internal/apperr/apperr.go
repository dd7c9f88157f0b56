// Package apperr classifies the failures produced by the governance services so that transports can tell
// user-actionable failures (authorization, quota) apart from transient ones (provisioning, storage).
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind identifies the class of a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthorization
	KindQuotaExceeded
	KindProvisioning
	KindPolicyViolation
	KindNotFound
	KindStorage
	KindInvalid
)

var kindNames = map[Kind]string{
	KindInternal:        "internal",
	KindAuthorization:   "authorization",
	KindQuotaExceeded:   "quota_exceeded",
	KindProvisioning:    "provisioning",
	KindPolicyViolation: "policy_violation",
	KindNotFound:        "not_found",
	KindStorage:         "storage",
	KindInvalid:         "invalid",
}

// String returns the name used for the kind in API responses.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindInternal]
}

// Error is a classified failure. The optional cause is available through Unwrap and Cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Err.Error())
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Cause returns the underlying cause for github.com/pkg/errors.
func (e *Error) Cause() error {
	return e.Err
}

func newError(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Authorization reports a caller that may not perform the request or a suspended node.
func Authorization(format string, args ...any) error {
	return newError(KindAuthorization, nil, format, args...)
}

// QuotaExceeded reports a node-count or resource cap that has been reached.
func QuotaExceeded(format string, args ...any) error {
	return newError(KindQuotaExceeded, nil, format, args...)
}

// Provisioning reports a failed or rejected orchestrator call.
func Provisioning(cause error, format string, args ...any) error {
	return newError(KindProvisioning, cause, format, args...)
}

// PolicyViolation reports an action blocked by the security policy guard.
func PolicyViolation(format string, args ...any) error {
	return newError(KindPolicyViolation, nil, format, args...)
}

// NotFound reports an unknown node, tier or other entity.
func NotFound(format string, args ...any) error {
	return newError(KindNotFound, nil, format, args...)
}

// Storage reports a durable store operation that did not complete.
func Storage(cause error, format string, args ...any) error {
	return newError(KindStorage, cause, format, args...)
}

// Invalid reports a malformed request or event.
func Invalid(format string, args ...any) error {
	return newError(KindInvalid, nil, format, args...)
}

// KindOf returns the kind of the first classified error in the chain, or KindInternal if there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is returns true if err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable returns true if the caller may retry the request unchanged.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindProvisioning, KindStorage:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error to the HTTP status code reported to callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthorization:
		return http.StatusForbidden
	case KindQuotaExceeded:
		return http.StatusPaymentRequired
	case KindProvisioning:
		return http.StatusBadGateway
	case KindPolicyViolation:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
