package apperrors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Kind string

const (
	KindUnauthenticated     Kind = "unauthenticated"
	KindInsufficientRole    Kind = "insufficient_role"
	KindPlanUpgradeRequired Kind = "plan_upgrade_required"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindMissingEmailClaim   Kind = "missing_email_claim"
	KindValidation          Kind = "validation_error"
	KindConflict            Kind = "conflict"
	KindTooManyRequests     Kind = "too_many_requests"
	KindInternal            Kind = "internal_server_error"
)

var statusByKind = map[Kind]int{
	KindUnauthenticated:     http.StatusUnauthorized,
	KindInsufficientRole:    http.StatusForbidden,
	KindPlanUpgradeRequired: http.StatusForbidden,
	KindForbidden:           http.StatusForbidden,
	KindNotFound:            http.StatusNotFound,
	KindMissingEmailClaim:   http.StatusBadRequest,
	KindValidation:          http.StatusBadRequest,
	KindConflict:            http.StatusConflict,
	KindTooManyRequests:     http.StatusTooManyRequests,
	KindInternal:            http.StatusInternalServerError,
}

type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Status() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// With attaches machine-readable context that is echoed in the JSON body.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Respond writes the error as a JSON body and aborts the request.
// Errors without a Kind are masked as internal_server_error so callers
// never see stack traces or driver messages.
func Respond(c *gin.Context, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = Wrap(KindInternal, "internal server error", err)
	}

	body := gin.H{"error": string(appErr.Kind)}
	if appErr.Message != "" {
		body["message"] = appErr.Message
	}
	for key, value := range appErr.Context {
		body[key] = value
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.Status(), body)
}
