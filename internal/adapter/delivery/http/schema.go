package http

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/link-shortener/internal/entity"
)

const statusError = "error"

// linkRequest represents the body of a request to create a link or change its target.
type linkRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// linkResponse represents a link as returned to clients.
type linkResponse struct {
	ShortCode string    `json:"short_code"`
	URL       string    `json:"url"`
	ShortURL  string    `json:"short_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toLinkResponse(link *entity.Link, baseURL string) linkResponse {
	return linkResponse{
		ShortCode: link.ShortCode,
		URL:       link.TargetURL,
		ShortURL:  shortURL(baseURL, link.ShortCode),
		CreatedAt: link.CreatedAt,
		UpdatedAt: link.UpdatedAt,
	}
}

func shortURL(baseURL, shortCode string) string {
	return strings.TrimRight(baseURL, "/") + "/" + shortCode
}

type bucketResponse struct {
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

type sourceResponse struct {
	Referrer  string `json:"referrer"`
	UserAgent string `json:"user_agent"`
	Count     int64  `json:"count"`
}

// statsResponse represents the usage statistics of a link. ClickCount is the
// live counter, TotalCount the number of recorded clicks within the range.
// An open side of the range is rendered as null.
type statsResponse struct {
	ShortCode   string           `json:"short_code"`
	ClickCount  int64            `json:"click_count"`
	TotalCount  int64            `json:"total_count"`
	From        *time.Time       `json:"from"`
	To          *time.Time       `json:"to"`
	Granularity string           `json:"granularity"`
	Buckets     []bucketResponse `json:"buckets"`
	Sources     []sourceResponse `json:"sources"`
}

func toStatsResponse(stats *entity.Stats) statsResponse {
	resp := statsResponse{
		ShortCode:   stats.Link.ShortCode,
		ClickCount:  stats.Link.ClickCount,
		TotalCount:  stats.TotalCount,
		From:        rangeBound(stats.Query.From),
		To:          rangeBound(stats.Query.To),
		Granularity: string(stats.Query.Granularity),
		Buckets:     make([]bucketResponse, 0, len(stats.Buckets)),
		Sources:     make([]sourceResponse, 0, len(stats.Sources)),
	}

	for _, b := range stats.Buckets {
		resp.Buckets = append(resp.Buckets, bucketResponse{Start: b.Start, Count: b.Count})
	}
	for _, s := range stats.Sources {
		resp.Sources = append(resp.Sources, sourceResponse{Referrer: s.Referrer, UserAgent: s.UserAgent, Count: s.Count})
	}

	return resp
}

func rangeBound(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type healthResponse struct {
	Status string `json:"status"`
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	linkNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "link not found",
	}

	unauthorizedResponse = errorResponse{
		Status:  statusError,
		Message: "missing or invalid credentials",
	}

	forbiddenResponse = errorResponse{
		Status:  statusError,
		Message: "access to the link is forbidden",
	}

	tooManyRequestsResponse = errorResponse{
		Status:  statusError,
		Message: "rate limit exceeded, try again later",
	}

	unavailableResponse = errorResponse{
		Status:  statusError,
		Message: "service temporarily unavailable, try again later",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}

	clientClosedRequestResponse = errorResponse{
		Status:  statusError,
		Message: "request canceled by the client",
	}
)

// invalidInputResponse reports the reason carried by an entity.ErrInvalidInput
// chain without the operation prefixes.
func invalidInputResponse(err error) errorResponse {
	msg := err.Error()
	if i := strings.Index(msg, entity.ErrInvalidInput.Error()); i >= 0 {
		msg = msg[i:]
	}

	return errorResponse{
		Status:  statusError,
		Message: msg,
	}
}

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
