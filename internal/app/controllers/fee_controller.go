package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/app/models/dto"
	"github.com/yigit/bursar/internal/app/services"
	"github.com/yigit/bursar/internal/middleware"
	"github.com/yigit/bursar/internal/pkg/helpers"
)

// FeeController handles fee obligation and payment operations
type FeeController struct {
	feeService services.FeeService
}

// NewFeeController creates a new FeeController
func NewFeeController(feeService services.FeeService) *FeeController {
	return &FeeController{
		feeService: feeService,
	}
}

// feeID binds and parses the :id path parameter
func feeID(ctx *gin.Context) (uuid.UUID, bool) {
	var param dto.FeeIDParam
	if err := middleware.BindURI(ctx, &param); err != nil {
		middleware.HandleAPIError(ctx, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(param.ID), true
}

// CreateFee handles obligation creation
// @Summary Create a fee obligation
// @Tags fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateFeeRequest true "Obligation"
// @Success 201 {object} dto.APIResponse{data=dto.FeeResponse}
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /fees [post]
func (c *FeeController) CreateFee(ctx *gin.Context) {
	var req dto.CreateFeeRequest
	if err := middleware.BindJSON(ctx, &req); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	fee, err := c.feeService.CreateObligation(ctx.Request.Context(), services.CreateObligationInput{
		StudentID:       req.StudentID,
		Category:        models.FeeCategory(req.Category),
		PrincipalAmount: req.PrincipalAmount,
		DueDate:         req.DueDate.Ptr(),
		Description:     req.Description,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(dto.FromFee(fee)))
}

// GetFee retrieves an obligation by ID
// @Summary Get a fee obligation
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Obligation ID" Format(uuid)
// @Success 200 {object} dto.APIResponse{data=dto.FeeResponse}
// @Failure 404 {object} dto.ErrorResponse "Obligation not found"
// @Router /fees/{id} [get]
func (c *FeeController) GetFee(ctx *gin.Context) {
	id, ok := feeID(ctx)
	if !ok {
		return
	}

	fee, err := c.feeService.GetObligation(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.FromFee(fee)))
}

// ListFees lists obligations with optional filters and pagination
// @Summary List fee obligations
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Student ID"
// @Param category query string false "Category"
// @Param status query string false "Status"
// @Param overdue query bool false "Only overdue obligations"
// @Param page query int false "Page number (1-based)" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=[]dto.FeeResponse}
// @Router /fees [get]
func (c *FeeController) ListFees(ctx *gin.Context) {
	var query dto.ListFeesQuery
	if err := middleware.BindQuery(ctx, &query); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	fees, err := c.feeService.ListObligations(ctx.Request.Context(), models.ObligationFilter{
		StudentID:   query.StudentID,
		Category:    models.FeeCategory(query.Category),
		Status:      models.FeeStatus(query.Status),
		OverdueOnly: query.Overdue,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	start, end := helpers.CalculateSliceIndices(query.Page, query.Size, len(fees))
	pagination := helpers.NewPaginationInfo(int64(len(fees)), query.Page, query.Size)

	resp := dto.NewAPIResponse(dto.FromFees(fees[start:end]))
	resp.Pagination = &pagination
	ctx.JSON(http.StatusOK, resp)
}

// AmendFee changes the provided fields of an obligation
// @Summary Amend a fee obligation
// @Tags fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Obligation ID" Format(uuid)
// @Param request body dto.AmendFeeRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.FeeResponse}
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 404 {object} dto.ErrorResponse "Obligation not found"
// @Failure 422 {object} dto.ErrorResponse "Obligation already paid"
// @Router /fees/{id} [patch]
func (c *FeeController) AmendFee(ctx *gin.Context) {
	id, ok := feeID(ctx)
	if !ok {
		return
	}

	var req dto.AmendFeeRequest
	if err := middleware.BindJSON(ctx, &req); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	in := services.AmendObligationInput{
		PrincipalAmount: req.PrincipalAmount,
		DueDate:         req.DueDate.Ptr(),
		Description:     req.Description,
	}
	if req.Category != nil {
		category := models.FeeCategory(*req.Category)
		in.Category = &category
	}

	fee, err := c.feeService.AmendObligation(ctx.Request.Context(), id, in)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.FromFee(fee)))
}

// DeleteFee deletes an obligation and its payments
// @Summary Delete a fee obligation
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Obligation ID" Format(uuid)
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse}
// @Failure 404 {object} dto.ErrorResponse "Obligation not found"
// @Router /fees/{id} [delete]
func (c *FeeController) DeleteFee(ctx *gin.Context) {
	id, ok := feeID(ctx)
	if !ok {
		return
	}

	if err := c.feeService.DeleteObligation(ctx.Request.Context(), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.SuccessResponse{Message: "Fee obligation deleted"}))
}

// RecordPayment records a payment against an obligation
// @Summary Record a payment
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Obligation ID" Format(uuid)
// @Param request body dto.RecordPaymentRequest true "Payment"
// @Success 201 {object} dto.APIResponse{data=dto.PaymentResponse}
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 404 {object} dto.ErrorResponse "Obligation not found"
// @Failure 409 {object} dto.ErrorResponse "Concurrent update conflict"
// @Failure 422 {object} dto.ErrorResponse "Payment exceeds outstanding amount"
// @Router /fees/{id}/payments [post]
func (c *FeeController) RecordPayment(ctx *gin.Context) {
	id, ok := feeID(ctx)
	if !ok {
		return
	}

	var req dto.RecordPaymentRequest
	if err := middleware.BindJSON(ctx, &req); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	payment, err := c.feeService.RecordPayment(ctx.Request.Context(), id, services.PaymentInput{
		Amount:      req.Amount,
		PaymentDate: req.PaymentDate.Ptr(),
		Method:      models.PaymentMethod(req.Method),
		Reference:   req.Reference,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(dto.FromPayment(payment)))
}

// ListFeePayments lists the payments of one obligation, newest first
// @Summary List payments of an obligation
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Obligation ID" Format(uuid)
// @Success 200 {object} dto.APIResponse{data=[]dto.PaymentResponse}
// @Failure 404 {object} dto.ErrorResponse "Obligation not found"
// @Router /fees/{id}/payments [get]
func (c *FeeController) ListFeePayments(ctx *gin.Context) {
	id, ok := feeID(ctx)
	if !ok {
		return
	}

	payments, err := c.feeService.ListPayments(ctx.Request.Context(), models.PaymentFilter{ObligationID: id})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.FromPayments(payments)))
}

// MarkPaid settles the outstanding amount with an administrative adjustment
// @Summary Mark an obligation fully paid
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Obligation ID" Format(uuid)
// @Success 200 {object} dto.APIResponse{data=dto.FeeResponse}
// @Failure 404 {object} dto.ErrorResponse "Obligation not found"
// @Failure 409 {object} dto.ErrorResponse "Concurrent update conflict"
// @Router /fees/{id}/mark-paid [post]
func (c *FeeController) MarkPaid(ctx *gin.Context) {
	id, ok := feeID(ctx)
	if !ok {
		return
	}

	fee, err := c.feeService.MarkFullyPaid(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.FromFee(fee)))
}

// ReconcileStatuses runs the status reconciliation once
// @Summary Reconcile obligation statuses
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=jobs.ReconcileResult}
// @Failure 503 {object} dto.ErrorResponse "Store unavailable"
// @Router /fees/reconcile [post]
func (c *FeeController) ReconcileStatuses(ctx *gin.Context) {
	result, err := c.feeService.ReconcileStatuses(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(result))
}
