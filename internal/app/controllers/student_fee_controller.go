package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/app/models/dto"
	"github.com/yigit/bursar/internal/app/services"
	"github.com/yigit/bursar/internal/middleware"
	"github.com/yigit/bursar/internal/pkg/filestorage"
)

// StudentFeeController handles per-student fee views
type StudentFeeController struct {
	feeService       services.FeeService
	statementService *services.StatementService
}

// NewStudentFeeController creates a new StudentFeeController
func NewStudentFeeController(feeService services.FeeService, statementService *services.StatementService) *StudentFeeController {
	return &StudentFeeController{
		feeService:       feeService,
		statementService: statementService,
	}
}

func studentID(ctx *gin.Context) (string, bool) {
	var param dto.StudentIDParam
	if err := middleware.BindURI(ctx, &param); err != nil {
		middleware.HandleAPIError(ctx, err)
		return "", false
	}
	return param.StudentID, true
}

// GetSummary returns the fee summary of a student
// @Summary Get a student's fee summary
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.FeeSummaryResponse}
// @Router /students/{studentId}/fees/summary [get]
func (c *StudentFeeController) GetSummary(ctx *gin.Context) {
	id, ok := studentID(ctx)
	if !ok {
		return
	}

	summary, err := c.feeService.SummarizeStudent(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.FromSummary(summary)))
}

// ListPayments lists every payment of a student, newest first
// @Summary List a student's payments
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.PaymentResponse}
// @Router /students/{studentId}/payments [get]
func (c *StudentFeeController) ListPayments(ctx *gin.Context) {
	id, ok := studentID(ctx)
	if !ok {
		return
	}

	payments, err := c.feeService.ListPayments(ctx.Request.Context(), models.PaymentFilter{StudentID: id})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.FromPayments(payments)))
}

// DownloadStatement streams the student's statement workbook
// @Summary Download a student's fee statement
// @Tags students
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {file} file
// @Router /students/{studentId}/fees/statement [get]
func (c *StudentFeeController) DownloadStatement(ctx *gin.Context) {
	id, ok := studentID(ctx)
	if !ok {
		return
	}

	data, name, err := c.statementService.Render(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	ctx.Data(http.StatusOK, filestorage.ContentTypeXLSX, data)
}

// ArchiveStatement stores the student's statement and returns where to fetch it
// @Summary Archive a student's fee statement
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 201 {object} dto.APIResponse{data=services.ArchivedStatement}
// @Failure 503 {object} dto.ErrorResponse "Statement archive is not configured"
// @Router /students/{studentId}/fees/statement/archive [post]
func (c *StudentFeeController) ArchiveStatement(ctx *gin.Context) {
	id, ok := studentID(ctx)
	if !ok {
		return
	}

	archived, err := c.statementService.Archive(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(archived))
}
