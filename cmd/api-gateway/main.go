package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/classbank-api/api/swagger"
	"github.com/noah-isme/classbank-api/internal/handler"
	"github.com/noah-isme/classbank-api/internal/middleware"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/internal/repository"
	"github.com/noah-isme/classbank-api/internal/service"
	"github.com/noah-isme/classbank-api/pkg/cache"
	"github.com/noah-isme/classbank-api/pkg/config"
	"github.com/noah-isme/classbank-api/pkg/database"
	"github.com/noah-isme/classbank-api/pkg/jobs"
	"github.com/noah-isme/classbank-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/classbank-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classbank-api/pkg/middleware/requestid"
	"github.com/noah-isme/classbank-api/pkg/storage"
)

// @title ClassBank API
// @version 0.1.0
// @description Classroom token economy platform
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	// repositories
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	marketRepo := repository.NewMarketRepository(db)
	savingsRepo := repository.NewSavingsRepository(db)
	streakRepo := repository.NewStreakRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// services
	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	authSvc := service.NewAuthService(teacherRepo, studentRepo, classroomRepo, validate, logr, service.AuthConfig{
		Secret:            cfg.JWT.Secret,
		TeacherExpiration: cfg.JWT.TeacherExpiration,
		StudentExpiration: cfg.JWT.StudentExpiration,
		Issuer:            cfg.JWT.Issuer,
	})
	classroomSvc := service.NewClassroomService(classroomRepo, studentRepo, streakRepo, savingsRepo, logr,
		service.WithDefaultTreasury(cfg.Economy.DefaultTreasury))
	badgeSvc := service.NewBadgeService(badgeRepo, streakRepo, walletRepo, transactionRepo, savingsRepo, ledgerRepo, logr)
	streakSvc := service.NewStreakService(streakRepo, walletRepo, ledgerRepo, logr,
		service.WithBadgeEvaluator(badgeSvc),
		service.WithStreakClassrooms(classroomRepo))
	ledgerSvc := service.NewLedgerService(ledgerRepo, walletRepo, transactionRepo, cacheRepo, logr,
		service.WithMaxBatchSize(cfg.Economy.MaxBatchSize),
		service.WithLeaderboardTTL(cfg.Indicators.LeaderboardTTL),
		service.WithStreakRecorder(streakSvc))
	approvalSvc := service.NewApprovalService(requestRepo, ledgerRepo, marketRepo, walletRepo, studentRepo, classroomRepo, cacheRepo, logr,
		service.WithCancelWindow(cfg.Economy.CancelWindow))
	marketSvc := service.NewMarketService(marketRepo, ledgerRepo, walletRepo, cacheRepo, logr)
	pricingSvc := service.NewPricingService(marketRepo, requestRepo, classroomRepo, studentRepo, walletRepo, logr)
	indicatorSvc := service.NewIndicatorService(walletRepo, transactionRepo, marketRepo, savingsRepo, requestRepo, classroomRepo, studentRepo, cacheRepo, logr,
		service.WithIndicatorCacheTTL(cfg.Indicators.CacheTTL))
	savingsSvc := service.NewSavingsService(savingsRepo, ledgerRepo, walletRepo, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(transactionRepo, walletRepo, studentRepo, store, signer, logr, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		})
	}

	// handlers
	authHandler := handler.NewAuthHandler(authSvc)
	classroomHandler := handler.NewClassroomHandler(classroomSvc, ledgerSvc)
	marketHandler := handler.NewMarketHandler(marketSvc, pricingSvc, classroomSvc)
	requestHandler := handler.NewRequestHandler(approvalSvc, classroomSvc)
	transactionHandler := handler.NewTransactionHandler(ledgerSvc, classroomSvc, classroomSvc)
	savingsHandler := handler.NewSavingsHandler(savingsSvc, classroomSvc)
	streakHandler := handler.NewStreakHandler(streakSvc, badgeSvc, classroomSvc)
	indicatorHandler := handler.NewIndicatorHandler(indicatorSvc, classroomSvc, classroomSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/teachers/register", authHandler.RegisterTeacher)
		auth.POST("/teachers/login", authHandler.LoginTeacher)
		auth.POST("/students/join", authHandler.JoinClassroom)
		auth.POST("/students/login", authHandler.LoginStudent)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		teacher := authed.Group("", middleware.TeacherOnly())
		{
			teacher.POST("/classrooms", classroomHandler.Create)
			teacher.GET("/classrooms", classroomHandler.List)
			teacher.PUT("/classrooms/:id/settings", classroomHandler.UpdateSettings)
			teacher.DELETE("/classrooms/:id/students/:studentId", classroomHandler.RemoveStudent)
			teacher.POST("/classrooms/:id/awards", classroomHandler.Award)
			teacher.POST("/classrooms/:id/refunds", classroomHandler.Refund)

			teacher.POST("/classrooms/:id/items", marketHandler.CreateItem)
			teacher.PUT("/classrooms/:id/items/:itemId", marketHandler.UpdateItem)
			teacher.POST("/classrooms/:id/pricing/recalculate", marketHandler.RecalculatePrices)

			teacher.POST("/purchase-requests/:requestId/approve", requestHandler.ApprovePurchase)
			teacher.POST("/purchase-requests/:requestId/reject", requestHandler.RejectPurchase)
			teacher.POST("/transfer-requests/:requestId/approve", requestHandler.ApproveTransfer)
			teacher.POST("/transfer-requests/:requestId/reject", requestHandler.RejectTransfer)

			teacher.POST("/classrooms/:id/savings/rates", savingsHandler.CreateRate)
			teacher.DELETE("/classrooms/:id/savings/rates/:rateId", savingsHandler.DeactivateRate)

			teacher.POST("/classrooms/:id/streaks/activities", streakHandler.RecordActivity)
			teacher.POST("/classrooms/:id/badges", streakHandler.CreateBadge)
			teacher.POST("/classrooms/:id/badges/:badgeId/students/:studentId", streakHandler.AwardBadge)
		}

		student := authed.Group("", middleware.StudentOnly())
		{
			student.POST("/classrooms/:id/purchase-requests", requestHandler.SubmitPurchase)
			student.POST("/purchase-requests/:requestId/cancel", requestHandler.CancelPurchase)
			student.POST("/classrooms/:id/transfer-requests", requestHandler.SubmitTransfer)
			student.POST("/transfer-requests/:requestId/cancel", requestHandler.CancelTransfer)
			student.POST("/classrooms/:id/items/:itemId/contributions", marketHandler.Contribute)

			student.GET("/wallet", transactionHandler.MyWallet)
			student.POST("/classrooms/:id/savings/accounts", savingsHandler.OpenAccount)
			student.GET("/savings/accounts", savingsHandler.MyAccounts)
			student.POST("/savings/accounts/:accountId/withdraw", savingsHandler.Withdraw)
			student.GET("/streaks", streakHandler.MyStreaks)
			student.GET("/badges", streakHandler.MyBadges)
		}

		shared := authed.Group("", middleware.RequireRole(models.RoleTeacher, models.RoleStudent))
		{
			shared.GET("/classrooms/:id", classroomHandler.Get)
			shared.GET("/classrooms/:id/students", classroomHandler.Roster)
			shared.GET("/classrooms/:id/items", marketHandler.ListItems)
			shared.GET("/classrooms/:id/purchase-requests", requestHandler.ListPurchases)
			shared.GET("/classrooms/:id/transfer-requests", requestHandler.ListTransfers)
			shared.GET("/classrooms/:id/transactions", transactionHandler.History)
			shared.GET("/classrooms/:id/leaderboard", transactionHandler.Leaderboard)
			shared.GET("/classrooms/:id/savings/rates", savingsHandler.ListRates)
			shared.GET("/classrooms/:id/streaks/rewards", streakHandler.Rewards)
			shared.GET("/classrooms/:id/badges", streakHandler.ListBadges)
			shared.GET("/classrooms/:id/indicators", indicatorHandler.Dashboard)
		}

		if exportSvc != nil {
			exportHandler := handler.NewExportHandler(exportSvc, classroomSvc)
			authed.POST("/classrooms/:id/exports/statements", exportHandler.GenerateStatement)
			// token in the path is the sole credential; browsers follow the
			// signed URL without an Authorization header
			api.GET("/exports/:token", exportHandler.Download)
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := newScheduler(rootCtx, cfg, logr, metricsSvc, classroomRepo, savingsSvc, pricingSvc, indicatorSvc, exportSvc)
	scheduler.start()
	defer scheduler.stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// scheduler drives the recurring economy sweeps. Each tick fans classroom
// sweeps out to a worker queue so one slow classroom cannot stall the rest.
type scheduler struct {
	ctx     context.Context
	cfg     *config.Config
	logger  *zap.Logger
	metrics *service.MetricsService

	classrooms *repository.ClassroomRepository
	savings    *service.SavingsService
	pricing    *service.PricingService
	indicators *service.IndicatorService
	exports    *service.ExportService

	queue   *jobs.Queue
	tickers []*time.Ticker
	done    chan struct{}
}

const (
	jobSavingsSweep   = "savings_sweep"
	jobPricingSweep   = "pricing_sweep"
	jobDailySnapshot  = "daily_snapshot"
	jobExportsCleanup = "exports_cleanup"
)

func newScheduler(ctx context.Context, cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService,
	classrooms *repository.ClassroomRepository, savings *service.SavingsService, pricing *service.PricingService,
	indicators *service.IndicatorService, exports *service.ExportService) *scheduler {
	s := &scheduler{
		ctx:        ctx,
		cfg:        cfg,
		logger:     logr,
		metrics:    metrics,
		classrooms: classrooms,
		savings:    savings,
		pricing:    pricing,
		indicators: indicators,
		exports:    exports,
		done:       make(chan struct{}),
	}
	s.queue = jobs.NewQueue("economy-sweeps", s.handle, jobs.QueueConfig{
		Workers:    2,
		MaxRetries: cfg.Savings.WorkerRetries,
		Logger:     logr,
	})
	return s
}

func (s *scheduler) start() {
	s.queue.Start(s.ctx)

	if s.cfg.Savings.Enabled {
		s.every(s.cfg.Savings.SweepInterval, func() {
			s.enqueue(jobSavingsSweep, "")
		})
	}
	if s.cfg.Pricing.Enabled {
		s.every(s.cfg.Pricing.SweepInterval, func() {
			s.fanOut(jobPricingSweep)
			s.fanOut(jobDailySnapshot)
		})
	}
	if s.exports != nil {
		s.every(s.cfg.Exports.CleanupInterval, func() {
			s.enqueue(jobExportsCleanup, "")
		})
	}
}

func (s *scheduler) stop() {
	close(s.done)
	for _, t := range s.tickers {
		t.Stop()
	}
	s.queue.Stop()
}

func (s *scheduler) every(interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	s.tickers = append(s.tickers, ticker)
	go func() {
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// fanOut enqueues one job per classroom.
func (s *scheduler) fanOut(jobType string) {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	ids, err := s.classrooms.ListIDs(ctx)
	if err != nil {
		s.logger.Sugar().Errorw("failed to list classrooms for sweep", "job", jobType, "error", err)
		return
	}
	for _, id := range ids {
		s.enqueue(jobType, id)
	}
}

func (s *scheduler) enqueue(jobType, classroomID string) {
	job := jobs.Job{
		ID:      fmt.Sprintf("%s/%s/%d", jobType, classroomID, time.Now().UnixNano()),
		Type:    jobType,
		Payload: classroomID,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Sugar().Warnw("failed to enqueue sweep", "job", jobType, "error", err)
	}
}

func (s *scheduler) handle(ctx context.Context, job jobs.Job) error {
	classroomID, _ := job.Payload.(string)
	start := time.Now()

	var err error
	switch job.Type {
	case jobSavingsSweep:
		var completed int
		completed, err = s.savings.MatureSweep(ctx)
		if err == nil && completed > 0 {
			s.logger.Sugar().Infow("savings sweep completed", "accounts", completed)
		}
	case jobPricingSweep:
		_, err = s.pricing.RecalculatePrices(ctx, classroomID)
	case jobDailySnapshot:
		err = s.indicators.SnapshotDaily(ctx, classroomID)
	case jobExportsCleanup:
		var removed int
		removed, err = s.exports.Cleanup()
		if err == nil && removed > 0 {
			s.logger.Sugar().Infow("export cleanup completed", "removed", removed)
		}
	default:
		s.logger.Sugar().Warnw("unknown job type", "type", job.Type)
		return nil
	}

	s.metrics.ObserveJob(job.Type, time.Since(start), err)
	return err
}
