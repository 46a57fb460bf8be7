package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yigit/bursar/internal/app/controllers"
	"github.com/yigit/bursar/internal/app/models/dto"
	"github.com/yigit/bursar/internal/app/models/dto/enums"
	"github.com/yigit/bursar/internal/middleware"
	"github.com/yigit/bursar/internal/pkg/websocket"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	feeController *controllers.FeeController,
	studentFeeController *controllers.StudentFeeController,
	ledgerEvents *websocket.Handler,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// Health check endpoint (public)
	v1.GET("/health", func(c *gin.Context) {
		c.JSON(200, dto.NewAPIResponse(gin.H{"status": "ok"}))
	})

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	// Ledger writes are limited to the bursar office
	writers := authMiddleware.RoleRequired(enums.LedgerWriters...)

	fees := authenticated.Group("/fees")
	{
		fees.GET("", feeController.ListFees)
		fees.GET("/:id", feeController.GetFee)
		fees.GET("/:id/payments", feeController.ListFeePayments)

		feesWriteProtected := fees.Group("")
		feesWriteProtected.Use(writers)
		{
			feesWriteProtected.POST("", feeController.CreateFee)
			feesWriteProtected.PATCH("/:id", feeController.AmendFee)
			feesWriteProtected.DELETE("/:id", feeController.DeleteFee)
			feesWriteProtected.POST("/:id/payments", feeController.RecordPayment)
			feesWriteProtected.POST("/:id/mark-paid", feeController.MarkPaid)
			feesWriteProtected.POST("/reconcile", feeController.ReconcileStatuses)
		}
	}

	students := authenticated.Group("/students/:studentId")
	{
		students.GET("/fees/summary", studentFeeController.GetSummary)
		students.GET("/fees/statement", studentFeeController.DownloadStatement)
		students.GET("/payments", studentFeeController.ListPayments)
		students.POST("/fees/statement/archive", writers, studentFeeController.ArchiveStatement)
	}

	// Live ledger event feed for the bursar office
	if ledgerEvents != nil {
		authenticated.GET("/ledger/events", writers, ledgerEvents.HandleConnection)
	}
}
