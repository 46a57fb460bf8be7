package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/bursar/internal/app/models/dto"
	"github.com/yigit/bursar/internal/pkg/apperrors"
	"github.com/yigit/bursar/internal/pkg/filestorage"
)

func handle(t *testing.T, err error) (int, dto.ErrorCode) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleAPIError(c, err)

	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return w.Code, body.Error.Code
}

func TestHandleAPIErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   dto.ErrorCode
	}{
		{"validation", apperrors.NewValidationError([]apperrors.FieldError{{Field: "amount", Message: "is required"}}), http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"business rule", apperrors.NewBusinessRuleError([]apperrors.FieldError{{Field: "amount", Rule: apperrors.ErrExceedsOutstanding}}), http.StatusUnprocessableEntity, dto.ErrorCodeBusinessRule},
		{"not found", apperrors.ErrObligationNotFound, http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{"conflict", apperrors.ErrConcurrencyConflict, http.StatusConflict, dto.ErrorCodeConflict},
		{"store failure", apperrors.NewStoreFailure("commit payment", errors.New("reset")), http.StatusServiceUnavailable, dto.ErrorCodeDatabaseError},
		{"archive disabled", filestorage.ErrNotConfigured, http.StatusServiceUnavailable, dto.ErrorCodeExternalServiceError},
		{"cancelled", fmt.Errorf("waiting for obligation lock: %w", context.Canceled), StatusClientClosedRequest, dto.ErrorCodeRequestAborted},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, dto.ErrorCodeRequestTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, dto.ErrorCodeInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := handle(t, tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
