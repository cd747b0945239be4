package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/EternisAI/silo-enroll/internal/addressing"
	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
	"github.com/EternisAI/silo-enroll/internal/keys"
	"github.com/gin-gonic/gin"
)

// writeError maps controller errors onto HTTP responses.
func writeError(ctx *gin.Context, err error) {
	var fieldErrs enrollment.FieldErrors
	resp := dto.ErrorResponse{Error: err.Error(), Retryable: enrollment.IsRetryable(err)}

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &fieldErrs):
		status = http.StatusUnprocessableEntity
		resp.Error = "validation failed"
		resp.Fields = fieldErrs
	case errors.Is(err, enrollment.ErrAccountDisabled):
		status = http.StatusForbidden
		resp.Error = "user account is disabled"
	case errors.Is(err, enrollment.ErrNoSession), errors.Is(err, enrollment.ErrConfigNotFound):
		status = http.StatusNotFound
	case errors.Is(err, enrollment.ErrOperationInFlight),
		errors.Is(err, enrollment.ErrInvalidTransition),
		errors.Is(err, enrollment.ErrSessionClosed),
		errors.Is(err, enrollment.ErrStaleRecommendation):
		status = http.StatusConflict
	case errors.Is(err, enrollment.ErrIssuanceFailed),
		errors.Is(err, enrollment.ErrRegistrationFailed),
		errors.Is(err, addressing.ErrValidationUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, keys.ErrKeyGeneration):
		resp.Error = "key generation failed"
	default:
		slog.Error("Unhandled enrollment error", "path", ctx.Request.URL.Path, "error", err)
		status = http.StatusBadGateway
		resp.Error = "upstream request failed"
	}

	ctx.JSON(status, resp)
}
