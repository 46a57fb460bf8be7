package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/bursar/internal/app/models/dto"
	"github.com/yigit/bursar/internal/pkg/apperrors"
	"github.com/yigit/bursar/internal/pkg/filestorage"
	"github.com/yigit/bursar/internal/pkg/logger"
)

// StatusClientClosedRequest is reported when the caller cancelled the request
const StatusClientClosedRequest = 499

// fieldDetails converts the field list of a validation or business rule error for the response
func fieldDetails(err error) *dto.ValidationErrors {
	details := dto.NewValidationErrors()
	for _, f := range apperrors.FieldErrorsOf(err) {
		details.AddError(f.Field, f.Message)
	}
	return details
}

func abortWith(c *gin.Context, status int, detail *dto.ErrorDetail) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(detail))
}

// HandleAPIError handles common API errors and returns appropriate responses
func HandleAPIError(c *gin.Context, err error) {
	var (
		validationErr *apperrors.ValidationError
		businessErr   *apperrors.BusinessRuleError
	)

	switch {
	case errors.As(err, &validationErr):
		abortWith(c, http.StatusBadRequest,
			dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Validation failed").WithDetails(fieldDetails(err)))
	case errors.Is(err, apperrors.ErrValidationFailed), errors.Is(err, apperrors.ErrBadRequest):
		abortWith(c, http.StatusBadRequest,
			dto.NewErrorDetail(dto.ErrorCodeValidationFailed, err.Error()))
	case errors.As(err, &businessErr):
		abortWith(c, http.StatusUnprocessableEntity,
			dto.NewErrorDetail(dto.ErrorCodeBusinessRule, "Business rule violation").WithDetails(fieldDetails(err)))
	case errors.Is(err, apperrors.ErrResourceNotFound):
		abortWith(c, http.StatusNotFound,
			dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, err.Error()))
	case errors.Is(err, apperrors.ErrResourceAlreadyExists):
		abortWith(c, http.StatusConflict,
			dto.NewErrorDetail(dto.ErrorCodeResourceAlreadyExists, err.Error()))
	case errors.Is(err, apperrors.ErrConflict):
		abortWith(c, http.StatusConflict,
			dto.NewErrorDetail(dto.ErrorCodeConflict, err.Error()))
	case errors.Is(err, apperrors.ErrPermissionDenied):
		abortWith(c, http.StatusForbidden,
			dto.NewErrorDetail(dto.ErrorCodeForbidden, "Permission denied"))
	case errors.Is(err, apperrors.ErrTokenExpired):
		abortWith(c, http.StatusUnauthorized,
			dto.NewErrorDetail(dto.ErrorCodeExpiredToken, "Token expired"))
	case errors.Is(err, apperrors.ErrTokenInvalid), errors.Is(err, apperrors.ErrInvalidFormat):
		abortWith(c, http.StatusUnauthorized,
			dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "Invalid token"))
	case errors.Is(err, apperrors.ErrStoreFailure):
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("Store failure while handling request")
		abortWith(c, http.StatusServiceUnavailable,
			dto.NewErrorDetail(dto.ErrorCodeDatabaseError, "Fee records are temporarily unavailable"))
	case errors.Is(err, filestorage.ErrNotConfigured):
		abortWith(c, http.StatusServiceUnavailable,
			dto.NewErrorDetail(dto.ErrorCodeExternalServiceError, "Statement archive is not configured"))
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads the body
		abortWith(c, StatusClientClosedRequest,
			dto.NewErrorDetail(dto.ErrorCodeRequestAborted, "Request cancelled"))
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Str("path", c.FullPath()).Msg("Request deadline exceeded")
		abortWith(c, http.StatusServiceUnavailable,
			dto.NewErrorDetail(dto.ErrorCodeRequestTimeout, "Request timed out, retry the operation"))
	default:
		// Handle unknown errors
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error while handling request")
		abortWith(c, http.StatusInternalServerError,
			dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error"))
	}
}
