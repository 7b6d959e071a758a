package http

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

const statusError = "error"

// URL list filters accepted by the status query parameter.
const (
	listStatusActive  = "active"
	listStatusExpired = "expired"
)

// urlRequest represents the structure for a request to shorten a URL.
type urlRequest struct {
	OriginalURL string `json:"original_url" validate:"required,notblank"`
}

// urlResponse represents a stored URL together with its public short link.
type urlResponse struct {
	ShortCode   string    `json:"short_code"`
	ShortURL    string    `json:"short_url"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toURLResponse(url *entity.URL, shortURL string) urlResponse {
	return urlResponse{
		ShortCode:   url.ShortCode,
		ShortURL:    shortURL,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
		ExpiresAt:   url.ExpiresAt,
	}
}

// urlStatsResponse adds the remaining lifetime to urlResponse.
type urlStatsResponse struct {
	urlResponse
	TTLSeconds int64 `json:"ttl_seconds"`
}

func toURLStatsResponse(url *entity.URL, shortURL string, now time.Time) urlStatsResponse {
	return urlStatsResponse{
		urlResponse: toURLResponse(url, shortURL),
		TTLSeconds:  int64(url.TTL(now) / time.Second),
	}
}

type urlListResponse struct {
	Status string        `json:"status"`
	Count  int           `json:"count"`
	URLs   []urlResponse `json:"urls"`
}

type purgeResponse struct {
	Deleted int64 `json:"deleted"`
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

	invalidURLResponse = errorResponse{
		Status:  statusError,
		Message: "original url must not be blank",
	}

	invalidListStatusResponse = errorResponse{
		Status:  statusError,
		Message: "status must be one of: active, expired",
	}

	urlNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "url not found",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "notblank":
		return "this field must not be blank"
	default:
		return "invalid value"
	}
}

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

func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
