package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/admission-portal-api/api/swagger"
	"github.com/noah-isme/admission-portal-api/internal/handler"
	internalmiddleware "github.com/noah-isme/admission-portal-api/internal/middleware"
	"github.com/noah-isme/admission-portal-api/internal/repository"
	"github.com/noah-isme/admission-portal-api/internal/service"
	"github.com/noah-isme/admission-portal-api/pkg/cache"
	"github.com/noah-isme/admission-portal-api/pkg/config"
	"github.com/noah-isme/admission-portal-api/pkg/database"
	"github.com/noah-isme/admission-portal-api/pkg/export"
	"github.com/noah-isme/admission-portal-api/pkg/jobs"
	"github.com/noah-isme/admission-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/admission-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/admission-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/admission-portal-api/pkg/notify"
	"github.com/noah-isme/admission-portal-api/pkg/payment"
	"github.com/noah-isme/admission-portal-api/pkg/storage"
)

// @title Admission Portal API
// @version 1.0.0
// @description Applicant form wizard, contact verification, admissions administration and master data
// @BasePath /api
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	appRepo := repository.NewApplicationRepository(db)
	admissionRepo := repository.NewAdmissionRepository(db)
	masterDataRepo := repository.NewMasterDataRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "admission")
	otpRepo := repository.NewOTPRepository(cacheRepo)
	draftRepo := repository.NewDraftRepository(cacheRepo, cfg.Admissions.DraftTTL)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Admissions.StatsCacheTTL, logr, true)

	queue := jobs.NewQueue("notifications", jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	smsSender, err := notify.NewSMSSender(cfg.SMS, cfg.Env, logr)
	if err != nil {
		return fmt.Errorf("configure sms: %w", err)
	}
	notifier := service.NewNotificationService(queue, notify.NewEmailSender(cfg.Email, logr), smsSender, metrics, logr)
	queue.Start(ctx)
	defer queue.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	applicationSvc := service.NewApplicationService(service.ApplicationServiceDeps{
		Applications: appRepo,
		Accounts:     userRepo,
		Admissions:   admissionRepo,
		Drafts:       draftRepo,
		Cache:        cacheSvc,
		Notifier:     notifier,
		References:   masterDataRepo,
		Validator:    validate,
		Logger:       logr,
	})
	otpSvc := service.NewOTPService(otpRepo, appRepo, notifier, userRepo, metrics, logr, cfg.OTP)

	var documentSvc *service.DocumentService
	if cfg.Storage.Enabled {
		objects, err := storage.NewObjectStore(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("connect object storage: %w", err)
		}
		documentSvc = service.NewDocumentService(documentRepo, appRepo, objects, userRepo, cfg.Storage.MaxFileSizeBytes, logr)
	} else {
		logr.Info("document storage disabled")
		documentSvc = service.NewDocumentService(documentRepo, appRepo, nil, userRepo, cfg.Storage.MaxFileSizeBytes, logr)
	}

	admissionSvc := service.NewAdmissionService(admissionRepo, cacheSvc, documentSvc, metrics, cfg.Admissions.StatsCacheTTL, logr)
	masterDataSvc := service.NewMasterDataService(masterDataRepo, cacheSvc, userRepo, metrics, cfg.Admissions.LookupCacheTTL, logr)

	form := service.NewFormValidator(validate, masterDataRepo)
	var paymentSvc *service.PaymentService
	if cfg.Payment.Enabled {
		paymentSvc = service.NewPaymentService(appRepo, admissionRepo, payment.NewGateway(cfg.Payment), form, cacheSvc, metrics, cfg.Payment.OrderIDPrefix, logr)
	} else {
		logr.Info("online payments disabled")
		paymentSvc = service.NewPaymentService(appRepo, admissionRepo, nil, form, cacheSvc, metrics, cfg.Payment.OrderIDPrefix, logr)
	}

	ackSvc := service.NewAcknowledgementService(appRepo,
		storage.NewTokenSigner(cfg.Acknowledgement.SigningSecret, cfg.Acknowledgement.LinkTTL),
		export.NewSlipRenderer(),
		service.AcknowledgementOptions{
			InstitutionName:    cfg.Acknowledgement.InstitutionName,
			InstitutionAddress: cfg.Acknowledgement.InstitutionAddress,
			VerifyBaseURL:      cfg.PublicURL + cfg.APIPrefix + "/public/acknowledgements",
		}, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health"))
	r.Use(internalmiddleware.WithResponseMeta())

	ops := handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis":    cacheRepo.Ping,
	})
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Auth:            handler.NewAuthHandler(authSvc),
		Applications:    handler.NewApplicationHandler(applicationSvc),
		OTP:             handler.NewOTPHandler(otpSvc),
		Admissions:      handler.NewAdmissionHandler(admissionSvc),
		MasterData:      handler.NewMasterDataHandler(masterDataSvc, 0),
		Payments:        handler.NewPaymentHandler(paymentSvc),
		Documents:       handler.NewDocumentHandler(documentSvc),
		Acknowledgement: handler.NewAcknowledgementHandler(ackSvc),
		AuthService:     authSvc,
		AuditRepo:       userRepo,
		Logger:          logr,
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
