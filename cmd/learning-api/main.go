package main

import (
	"context"
	"errors"
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

	_ "github.com/noah-isme/learnhub-api/api/swagger"
	"github.com/noah-isme/learnhub-api/internal/handler"
	"github.com/noah-isme/learnhub-api/internal/middleware"
	"github.com/noah-isme/learnhub-api/internal/repository"
	"github.com/noah-isme/learnhub-api/internal/service"
	"github.com/noah-isme/learnhub-api/pkg/cache"
	"github.com/noah-isme/learnhub-api/pkg/config"
	"github.com/noah-isme/learnhub-api/pkg/database"
	"github.com/noah-isme/learnhub-api/pkg/events"
	"github.com/noah-isme/learnhub-api/pkg/export"
	"github.com/noah-isme/learnhub-api/pkg/jobs"
	"github.com/noah-isme/learnhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/learnhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/learnhub-api/pkg/middleware/requestid"
	"github.com/noah-isme/learnhub-api/pkg/storage"
)

// @title LearnHub Learning API
// @version 1.0.0
// @description Course progress, quiz grading and completion certificates.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	readiness := map[string]handler.Pinger{"postgres": handler.PingFunc(db.PingContext)}
	var courseCache *service.CacheService
	if cfg.CourseCache.Enabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			// The cache is optional; definitions are read from Postgres instead.
			logr.Warn("redis unavailable, course cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, "learnhub")
			courseCache = service.NewCacheService(cacheRepo, metrics, cfg.CourseCache.TTL, logr, true)
			readiness["redis"] = cacheRepo
		}
	}

	publisher, inProcess, err := events.NewPublisher(cfg.Events, logr)
	if err != nil {
		return fmt.Errorf("init events: %w", err)
	}
	defer publisher.Close()
	if inProcess != nil {
		if err := events.LogConsumer(ctx, inProcess, logr,
			events.TopicCourseCompleted, events.TopicCertificateIssued, events.TopicQuizAttempted); err != nil {
			return err
		}
	}

	certStore, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		return fmt.Errorf("init certificate storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.Validity)

	textPolicy, err := service.ParseTextPolicy(cfg.Grading.TextPolicy)
	if err != nil {
		return err
	}

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)

	validate := validator.New()
	authSvc := service.NewAuthService(service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	courseSvc := service.NewCourseService(courseRepo, courseCache, logr)
	certificateSvc := service.NewCertificateService(
		certificateRepo, enrollmentRepo, certStore, signer, export.NewCertificateRenderer(""), publisher, metrics,
		service.CertificateConfig{PublicBaseURL: cfg.PublicBaseURL, APIPrefix: cfg.APIPrefix, Validity: cfg.Certificates.Validity},
		logr,
	)
	quizSvc := service.NewQuizService(
		enrollmentRepo, studentRepo, courseSvc, service.NewQuizGrader(textPolicy, cfg.Grading.PassThreshold),
		certificateSvc, publisher, metrics, cfg.Enrollment.MaxRetries, validate, logr,
	)
	progressSvc := service.NewProgressService(enrollmentRepo, certificateSvc, publisher, metrics, cfg.Enrollment.MaxRetries, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseSvc, certificateRepo, logr)
	exportSvc := service.NewExportService(enrollmentRepo, courseRepo, logr)

	queue := jobs.NewQueue("certificates", certificateSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Certificates.Workers,
		BufferSize: cfg.Certificates.BackfillBatch,
		MaxRetries: cfg.Certificates.Retries,
		RetryDelay: cfg.Certificates.RetryDelay,
		Logger:     logr,
		OnGiveUp: func(job jobs.Job, err error) {
			metrics.RecordCertificateFailure("backfill")
			logr.Error("certificate backfill gave up", zap.String("job_id", job.ID), zap.Error(err))
		},
	})
	queue.Start(ctx)
	defer queue.Stop()

	backfill := service.NewCertificateBackfill(enrollmentRepo, queue, metrics, cfg.Certificates.BackfillCron, cfg.Certificates.BackfillBatch, logr)
	if err := backfill.Start(); err != nil {
		return err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metrics))

	ops := handler.NewMetricsHandler(metrics, readiness)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Auth:         authSvc,
		Quizzes:      handler.NewQuizHandler(quizSvc),
		Progress:     handler.NewProgressHandler(progressSvc),
		Enrollments:  handler.NewEnrollmentHandler(enrollmentSvc),
		Certificates: handler.NewCertificateHandler(certificateSvc),
		Exports:      handler.NewExportHandler(exportSvc),
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	backfill.Stop(shutdownCtx)
	return nil
}
