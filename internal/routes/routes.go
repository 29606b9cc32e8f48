package routes

import (
	"net/http"
	"time"

	"bank-sync-backend/internal/aggregator"
	"bank-sync-backend/internal/cache"
	handler "bank-sync-backend/internal/handlers"
	"bank-sync-backend/internal/logging"
	"bank-sync-backend/internal/metrics"
	"bank-sync-backend/internal/repository"
	"bank-sync-backend/internal/services/connection"
	"bank-sync-backend/internal/services/history"
	"bank-sync-backend/internal/services/orchestrator"
	"bank-sync-backend/internal/services/reconciler"
	"bank-sync-backend/internal/services/syncstate"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries what the routes need to build the pipeline.
type Deps struct {
	DB           *gorm.DB
	Source       aggregator.DataSource
	Institutions cache.InstitutionCache
	Sync         orchestrator.Config
	Recorder     metrics.Recorder
	Logger       *logging.Logger
	// Sleeper overrides the blocking pause between upstream calls.
	Sleeper orchestrator.Sleeper
}

func RegisterRoutes(r *gin.Engine, deps Deps) {
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoOpRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNoOpLogger()
	}

	accountRepo := repository.NewAccountRepository(deps.DB)
	transactionRepo := repository.NewTransactionRepository(deps.DB)
	historyRepo := repository.NewSyncHistoryRepository(deps.DB)
	requisitionRepo := repository.NewRequisitionRepository(deps.DB)

	opts := []orchestrator.Option{
		orchestrator.WithRecorder(deps.Recorder),
		orchestrator.WithLogger(deps.Logger),
	}
	if deps.Sleeper != nil {
		opts = append(opts, orchestrator.WithSleeper(deps.Sleeper))
	}
	syncService := orchestrator.NewService(
		accountRepo,
		deps.Source,
		syncstate.NewMachine(accountRepo, time.Now),
		history.NewLedger(historyRepo, time.Now),
		reconciler.NewReconciler(transactionRepo, deps.Logger),
		deps.Sync,
		opts...,
	)
	connectionService := connection.NewService(deps.Source, accountRepo, requisitionRepo, deps.Institutions, deps.Logger)

	syncHandler := handler.NewSyncHandler(syncService)
	accountHandler := handler.NewAccountHandler(accountRepo, transactionRepo)
	connectionHandler := handler.NewConnectionHandler(connectionService)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	user := api.Group("", handler.RequireUser())

	// Sync routes
	user.POST("/sync", syncHandler.Sync)
	user.GET("/sync/status", syncHandler.Status)

	// Account routes
	user.GET("/accounts", accountHandler.List)
	user.GET("/accounts/:id/transactions", accountHandler.Transactions)

	// Connection routes
	user.GET("/institutions", connectionHandler.Institutions)
	connections := user.Group("/connections")
	{
		connections.POST("", connectionHandler.Connect)
		connections.POST("/:reference/complete", connectionHandler.Complete)
	}
}
