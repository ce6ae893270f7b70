package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/shopcore/storefront-api/internal/order"
	"github.com/shopcore/storefront-api/internal/product"
	"github.com/shopcore/storefront-api/internal/user"
)

// ValidationErrorResponse carries a machine-readable field -> message map.
type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithFieldErrors(w http.ResponseWriter, details map[string]string) {
	respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
		Error:   "Validation failed",
		Details: details,
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			details[field] = "This field is required"
		case "email":
			details[field] = "Must be a valid email address"
		case "min":
			details[field] = fmt.Sprintf("Must be at least %s characters long", fe.Param())
		case "gt":
			details[field] = fmt.Sprintf("Must be greater than %s", fe.Param())
		case "gte":
			details[field] = fmt.Sprintf("Must be at least %s", fe.Param())
		case "oneof":
			details[field] = fmt.Sprintf("Must be one of: %s", fe.Param())
		default:
			details[field] = "Invalid value"
		}
	}
	return details
}

// handleValidationError converts a validator failure into a 400 with field
// details; anything else is an internal validation error.
func handleValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondWithFieldErrors(w, formatValidationErrors(validationErrors))
		return
	}
	log.Error().Err(err).Msg("unexpected error type during validation")
	respondWithError(w, http.StatusInternalServerError, "Internal validation error")
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, product.ErrBadFilter),
		errors.Is(err, order.ErrBadFilter),
		errors.Is(err, product.ErrNegativePrice),
		errors.Is(err, product.ErrNegativeStock),
		errors.Is(err, product.ErrNameRequired),
		errors.Is(err, order.ErrNoItems),
		errors.Is(err, order.ErrBadQuantity),
		errors.Is(err, order.ErrBadProductRef),
		errors.Is(err, order.ErrProductNotFound),
		errors.Is(err, order.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, user.ErrEmailExists),
		errors.Is(err, user.ErrUsernameExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
