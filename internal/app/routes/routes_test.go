package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/bursar/internal/app/controllers"
	"github.com/yigit/bursar/internal/app/jobs"
	"github.com/yigit/bursar/internal/app/repositories"
	"github.com/yigit/bursar/internal/app/services"
	"github.com/yigit/bursar/internal/middleware"
	"github.com/yigit/bursar/internal/pkg/auth"
	"github.com/yigit/bursar/internal/pkg/filestorage"
)

var now = time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Errors []struct {
				Field   string `json:"field"`
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"details"`
	} `json:"error"`
	Pagination *struct {
		TotalItems int `json:"totalItems"`
	} `json:"pagination"`
}

type api struct {
	t      *testing.T
	router *gin.Engine
	jwt    *auth.JWTService
	token  string
}

func newAPI(t *testing.T, storage filestorage.FileStorage) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repositories.NewMemoryFeeStore()
	clock := services.FixedClock(now)
	validator := services.NewFeeValidator(clock)
	feeService := services.NewFeeService(services.FeeServiceDeps{
		Store:      store,
		Students:   repositories.NewMemoryStudentDirectory("S100"),
		Validator:  validator,
		Processor:  services.NewPaymentProcessor(store, validator, clock, 3),
		Summaries:  services.NewSummaryAggregator(store, clock),
		Reconciler: jobs.NewReconcileStatusesJob(store, clock.Now, nil, 0, nil),
		Clock:      clock,
	})
	statements := services.NewStatementService(feeService, services.NewStatementExporter(clock), storage, time.Hour, nil, clock)

	jwtService := auth.NewJWTService(auth.JWTConfig{SecretKey: "secret", AccessTokenExp: time.Hour, TokenIssuer: "identity"})
	router := gin.New()
	router.Use(middleware.RequestLogger())
	SetupRouter(router,
		controllers.NewFeeController(feeService),
		controllers.NewStudentFeeController(feeService, statements),
		nil,
		middleware.NewAuthMiddleware(jwtService),
	)

	a := &api{t: t, router: router, jwt: jwtService}
	a.token = a.tokenFor("BURSAR")
	return a
}

func (a *api) tokenFor(role string) string {
	token, err := a.jwt.GenerateToken("clerk-1", role)
	require.NoError(a.t, err)
	return token
}

func (a *api) do(method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (a *api) createFee(principal string) string {
	a.t.Helper()
	w, env := a.do(http.MethodPost, "/api/v1/fees", gin.H{
		"studentId":       "S100",
		"category":        "TUITION",
		"principalAmount": principal,
		"dueDate":         "2026-10-01",
		"description":     "Autumn term",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var fee struct {
		ID string `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &fee))
	return fee.ID
}

func TestFeeLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t, nil)
	id := a.createFee("1000")

	w, env := a.do(http.MethodPost, "/api/v1/fees/"+id+"/payments", gin.H{
		"amount": "400", "paymentDate": "2026-09-01", "method": "CASH",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var payment struct {
		Amount string `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payment))
	assert.Equal(t, "400.00", payment.Amount)

	w, env = a.do(http.MethodGet, "/api/v1/fees/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fee struct {
		Status      string `json:"status"`
		Outstanding string `json:"outstanding"`
		DueDate     string `json:"dueDate"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fee))
	assert.Equal(t, "PARTIALLY_PAID", fee.Status)
	assert.Equal(t, "600.00", fee.Outstanding)
	assert.Equal(t, "2026-10-01", fee.DueDate)

	w, env = a.do(http.MethodPost, "/api/v1/fees/"+id+"/payments", gin.H{
		"amount": 700, "paymentDate": "2026-09-01", "method": "CASH",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BUS_001", env.Error.Code)
	require.Len(t, env.Error.Details.Errors, 1)
	assert.Equal(t, "amount", env.Error.Details.Errors[0].Field)

	w, _ = a.do(http.MethodPost, "/api/v1/fees/"+id+"/mark-paid", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = a.do(http.MethodGet, "/api/v1/fees/"+id+"/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payments []struct {
		Method string `json:"method"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payments))
	assert.Len(t, payments, 2)

	w, env = a.do(http.MethodPatch, "/api/v1/fees/"+id, gin.H{"principalAmount": "2000"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "BUS_001", env.Error.Code)

	w, _ = a.do(http.MethodDelete, "/api/v1/fees/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = a.do(http.MethodGet, "/api/v1/fees/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RES_001", env.Error.Code)
}

func TestValidationFailuresAreReportedTogether(t *testing.T) {
	a := newAPI(t, nil)

	w, env := a.do(http.MethodPost, "/api/v1/fees", gin.H{
		"studentId":       "",
		"category":        "PARKING",
		"principalAmount": "-5",
		"dueDate":         "2026-01-01",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VAL_001", env.Error.Code)

	var fields []string
	for _, e := range env.Error.Details.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"studentId", "category", "principalAmount", "dueDate"}, fields)

	w, env = a.do(http.MethodGet, "/api/v1/fees/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, env.Error.Details.Errors, 1)
	assert.Equal(t, "id", env.Error.Details.Errors[0].Field)

	w, env = a.do(http.MethodGet, "/api/v1/fees?status=LOST&size=1000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, env.Error.Details.Errors, 2)

	w, _ = a.do(http.MethodPost, "/api/v1/fees", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownStudentIsNotFound(t *testing.T) {
	a := newAPI(t, nil)
	w, env := a.do(http.MethodPost, "/api/v1/fees", gin.H{
		"studentId": "S999", "category": "LAB", "principalAmount": "10", "dueDate": "2026-10-01",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "student not found", env.Error.Message)
}

func TestAuthorization(t *testing.T) {
	a := newAPI(t, nil)

	a.token = ""
	w, _ := a.do(http.MethodGet, "/api/v1/fees", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	a.token = "garbage"
	w, _ = a.do(http.MethodGet, "/api/v1/fees", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	a.token = a.tokenFor("STUDENT")
	w, _ = a.do(http.MethodGet, "/api/v1/fees", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = a.do(http.MethodPost, "/api/v1/fees/reconcile", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	a.token = a.tokenFor("ADMIN")
	w, _ = a.do(http.MethodPost, "/api/v1/fees/reconcile", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	a.token = ""
	w, _ = a.do(http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListFeesPaginates(t *testing.T) {
	a := newAPI(t, nil)
	for i := 0; i < 3; i++ {
		a.createFee("100")
	}

	w, env := a.do(http.MethodGet, "/api/v1/fees?studentId=S100&size=2&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fees []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &fees))
	assert.Len(t, fees, 1)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 3, env.Pagination.TotalItems)
}

func TestStudentViews(t *testing.T) {
	a := newAPI(t, nil)
	id := a.createFee("250")
	w, _ := a.do(http.MethodPost, "/api/v1/fees/"+id+"/payments", gin.H{
		"amount": "50", "paymentDate": "2026-09-01", "method": "CARD",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := a.do(http.MethodGet, "/api/v1/students/S100/fees/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		TotalOutstanding string         `json:"totalOutstanding"`
		CountsByStatus   map[string]int `json:"countsByStatus"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, "200.00", summary.TotalOutstanding)
	assert.Len(t, summary.CountsByStatus, 4)
	assert.Equal(t, 1, summary.CountsByStatus["PARTIALLY_PAID"])

	w, env = a.do(http.MethodGet, "/api/v1/students/S100/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payments []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &payments))
	assert.Len(t, payments, 1)

	w, _ = a.do(http.MethodGet, "/api/v1/students/S100/fees/statement", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, filestorage.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "statement-S100-")
	assert.NotZero(t, w.Body.Len())

	w, env = a.do(http.MethodPost, "/api/v1/students/S100/fees/statement/archive", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SRV_003", env.Error.Code)
}

func TestArchiveStatement(t *testing.T) {
	storage, err := filestorage.NewLocalStorage(t.TempDir(), "http://files.local")
	require.NoError(t, err)
	a := newAPI(t, storage)
	a.createFee("100")

	w, env := a.do(http.MethodPost, "/api/v1/students/S100/fees/statement/archive", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var archived struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &archived))
	assert.Contains(t, archived.URL, "http://files.local/S100/statement-S100-")
}
