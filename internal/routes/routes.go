package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"payment-run-settlement-backend/internal/config"
	handler "payment-run-settlement-backend/internal/handlers"
	"payment-run-settlement-backend/internal/repository"
	"payment-run-settlement-backend/internal/services/directcredit"
	"payment-run-settlement-backend/internal/services/ledger"
	"payment-run-settlement-backend/internal/services/paymentrun"
	"payment-run-settlement-backend/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB) {
	log := config.GetLogger()

	ledgerRepo := repository.NewLedgerRepository(db)
	billRepo := repository.NewBillRepository(db)
	bankRepo := repository.NewBankAccountRepository(db)
	runStore := repository.NewPaymentRunStore(db)
	matchStore := repository.NewMatchStore(db)

	ledgerEngine := ledger.NewEngine(ledgerRepo, log)
	runService := paymentrun.NewService(runStore, log)
	fileService := directcredit.NewService(runStore)
	reconService := reconciliation.NewService(matchStore, log)

	ledgerHandler := handler.NewLedgerHandler(ledgerEngine, ledgerRepo, bankRepo)
	runHandler := handler.NewPaymentRunHandler(runService, fileService, billRepo)
	reconHandler := handler.NewReconciliationHandler(reconService)

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	runs := api.Group("/payment-runs")
	runs.POST("", runHandler.CreateRun)
	runs.GET("", runHandler.ListRuns)
	runs.GET("/:id", runHandler.GetRun)
	runs.POST("/:id/allocations", runHandler.AddAllocations)
	runs.DELETE("/:id/allocations/:billId", runHandler.RemoveAllocation)
	runs.POST("/:id/complete", runHandler.CompleteRun)
	runs.GET("/:id/file", runHandler.DownloadFile)

	api.POST("/bills", runHandler.CreateBill)

	txns := api.Group("/ledger")
	txns.POST("/transactions", ledgerHandler.PostTransaction)
	txns.GET("/transactions/:id", ledgerHandler.GetTransaction)
	txns.POST("/transactions/:id/reverse", ledgerHandler.ReverseTransaction)
	txns.POST("/accounts", ledgerHandler.CreateAccount)
	txns.POST("/bank-accounts", ledgerHandler.CreateBankAccount)

	feed := api.Group("/feed-items")
	feed.POST("", reconHandler.ImportFeedItem)
	feed.POST("/:id/match", reconHandler.MatchFeedItem)
	feed.POST("/:id/unmatch", reconHandler.UnmatchFeedItem)
	feed.POST("/:id/auto-match", reconHandler.AutoMatchFeedItem)
	feed.GET("/:id/match", reconHandler.CurrentMatch)
	feed.GET("/:id/history", reconHandler.MatchHistory)

	api.GET("/reconciliation/statistics", reconHandler.Statistics)
}
