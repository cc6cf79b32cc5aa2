package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingoverviewdomain "github.com/smallbiznis/bukukas/internal/billingoverview/domain"
	billingperioddomain "github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/calendar"
	"github.com/smallbiznis/bukukas/internal/csvio"
	subscriberdomain "github.com/smallbiznis/bukukas/internal/subscriber/domain"
	"github.com/smallbiznis/bukukas/pkg/db"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	if isNotFoundError(err) {
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	}

	if db.IsDuplicateKeyErr(err) {
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "resource already exists",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// classifyErrorForLog reports the envelope type and a stable code for request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status == http.StatusBadRequest:
		if len(payload.Errors) > 0 {
			return payload.Type, payload.Errors[0].Code
		}
		return payload.Type, "invalid_request"
	case status == http.StatusNotFound:
		return payload.Type, err.Error()
	case status == http.StatusConflict:
		return payload.Type, "duplicate_key"
	default:
		return payload.Type, "internal_error"
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, calendar.ErrInvalidDate),
		errors.Is(err, calendar.ErrInvalidPeriod),
		errors.Is(err, csvio.ErrEmptyFile):
		return true
	case isBillingPeriodValidationError(err),
		isSubscriberValidationError(err),
		errors.Is(err, billingoverviewdomain.ErrInvalidFiscalYear):
		return true
	default:
		return false
	}
}

func isBillingPeriodValidationError(err error) bool {
	for _, target := range []error{
		billingperioddomain.ErrInvalidPeriod,
		billingperioddomain.ErrInvalidStartDate,
		billingperioddomain.ErrInvalidTermMonths,
		billingperioddomain.ErrInvalidStatus,
		billingperioddomain.ErrInvalidEntryID,
		billingperioddomain.ErrInvalidRefID,
		billingperioddomain.ErrInvalidFiscalYear,
		billingperioddomain.ErrMissingSubscriber,
		billingperioddomain.ErrStartOutsidePeriod,
		billingperioddomain.ErrEmptyUpdate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isSubscriberValidationError(err error) bool {
	for _, target := range []error{
		subscriberdomain.ErrInvalidID,
		subscriberdomain.ErrInvalidName,
		subscriberdomain.ErrInvalidPrice,
		subscriberdomain.ErrInvalidStartDate,
		subscriberdomain.ErrInvalidTermMonths,
		subscriberdomain.ErrInvalidDiscount,
		subscriberdomain.ErrInvalidStatus,
		subscriberdomain.ErrInvalidPageToken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, billingperioddomain.ErrPeriodNotFound),
		errors.Is(err, billingperioddomain.ErrAggregateNotFound),
		errors.Is(err, billingperioddomain.ErrEntryNotFound),
		errors.Is(err, billingperioddomain.ErrSubscriberNotFound),
		errors.Is(err, subscriberdomain.ErrNotFound),
		db.IsNotFound(err):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, billingperioddomain.ErrPeriodNotFound):
		return "billing period not found"
	case errors.Is(err, billingperioddomain.ErrAggregateNotFound):
		return "period aggregate not found"
	case errors.Is(err, billingperioddomain.ErrEntryNotFound):
		return "billing entry not found"
	case errors.Is(err, billingperioddomain.ErrSubscriberNotFound),
		errors.Is(err, subscriberdomain.ErrNotFound):
		return "subscriber not found"
	default:
		return "not found"
	}
}

// validationErrorCode unwraps to the sentinel so wrapped errors keep a stable code.
func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, calendar.ErrInvalidPeriod):
		return calendar.ErrInvalidPeriod.Error()
	case errors.Is(err, calendar.ErrInvalidDate):
		return calendar.ErrInvalidDate.Error()
	}
	for unwrapped := errors.Unwrap(err); unwrapped != nil; unwrapped = errors.Unwrap(unwrapped) {
		err = unwrapped
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request", "empty_update", "empty_csv":
		return "request"
	case "missing_subscriber":
		return "subscriber_id"
	case "start_date_outside_period":
		return "start_date"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_period":
		return "period must be formatted as YYYY-MM"
	case "invalid_start_date", "invalid_date":
		return "date must be formatted as YYYY-MM-DD"
	case "invalid_status":
		return "status is not allowed"
	case "missing_subscriber":
		return "subscriber_id or subscriber_name with monthly_price is required"
	case "start_date_outside_period":
		return "start date must stay inside the entry's period"
	case "empty_update":
		return "at least one field must be updated"
	case "empty_csv":
		return "csv file is empty"
	default:
		return "invalid value"
	}
}
