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
	"go.uber.org/zap"

	_ "github.com/agendapro/agenda-api/api/swagger"
	"github.com/agendapro/agenda-api/internal/handler"
	"github.com/agendapro/agenda-api/internal/middleware"
	"github.com/agendapro/agenda-api/internal/repository"
	"github.com/agendapro/agenda-api/internal/service"
	"github.com/agendapro/agenda-api/pkg/cache"
	"github.com/agendapro/agenda-api/pkg/config"
	"github.com/agendapro/agenda-api/pkg/database"
	"github.com/agendapro/agenda-api/pkg/erp"
	"github.com/agendapro/agenda-api/pkg/events"
	"github.com/agendapro/agenda-api/pkg/export"
	"github.com/agendapro/agenda-api/pkg/invoicing"
	"github.com/agendapro/agenda-api/pkg/jobs"
	"github.com/agendapro/agenda-api/pkg/logger"
	"github.com/agendapro/agenda-api/pkg/mailer"
	corsmiddleware "github.com/agendapro/agenda-api/pkg/middleware/cors"
	reqidmiddleware "github.com/agendapro/agenda-api/pkg/middleware/requestid"
	"github.com/agendapro/agenda-api/pkg/storage"
)

// @title AgendaPro API
// @version 1.0.0
// @description Salon booking: service catalog, staff schedules, availability and appointments.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const exportCleanupInterval = time.Hour

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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, slot cache disabled", zap.Error(err))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	serviceRepo := repository.NewServiceRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, "agenda")
	}
	slotCache := service.NewSlotCache(cacheRepo, metricsSvc, cfg.Booking.SlotCacheTTL, logr)

	queue := jobs.NewQueue("agenda", jobs.Config{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})

	loc := cfg.Booking.Location()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	configSvc := service.NewConfigurationService(configRepo, userRepo, validate, logr, service.ConfigurationServiceConfig{Slots: slotCache})
	catalogSvc := service.NewCatalogService(serviceRepo, userRepo, validate, logr)
	staffSvc := service.NewStaffService(staffRepo, userRepo, configSvc, slotCache, userRepo, validate, logr)
	agendaSvc := service.NewAgendaService(appointmentRepo, serviceRepo, staffRepo, validate, logr, loc)

	// Disabled integrations stay untyped nil so the services see them as absent.
	var erpSyncer interface {
		SyncAppointment(ctx context.Context, id string) error
	}
	erpSvc := service.NewERPService(nil, agendaSvc, validate, logr)
	if cfg.ERP.Enabled {
		client := erp.NewClient(erp.Config{BaseURL: cfg.ERP.BaseURL, APIKey: cfg.ERP.APIKey, Timeout: cfg.ERP.Timeout}, nil)
		erpSvc = service.NewERPService(client, agendaSvc, validate, logr)
		erpSyncer = erpSvc
	}

	invoiceSvc := service.NewInvoiceService(invoiceRepo, nil, agendaSvc, userRepo, configSvc, validate, logr)
	if cfg.Invoicing.Enabled {
		provider := invoicing.NewClient(invoicing.Config{
			BaseURL:  cfg.Invoicing.BaseURL,
			NIT:      cfg.Invoicing.NIT,
			Token:    cfg.Invoicing.Token,
			TestMode: cfg.Invoicing.TestMode,
			Timeout:  cfg.Invoicing.Timeout,
		}, nil)
		invoiceSvc = service.NewInvoiceService(invoiceRepo, provider, agendaSvc, userRepo, configSvc, validate, logr)
	}

	var mail mailer.Sender
	if cfg.Mail.Enabled {
		mail = mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	}
	var publisher events.Publisher
	if cfg.Events.Enabled {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		if err != nil {
			logr.Fatal("event publisher init failed", zap.Error(err))
		}
		defer kafkaPublisher.Close() //nolint:errcheck
		publisher = kafkaPublisher
	}

	notifier := service.NewNotificationService(queue, mail, publisher, userRepo, staffRepo, erpSyncer, metricsSvc, logr, service.NotificationConfig{
		Settings:      configSvc,
		MailEnabled:   cfg.Mail.Enabled,
		EventsEnabled: cfg.Events.Enabled,
	})

	bookingSvc := service.NewBookingService(service.BookingDeps{
		Catalog:      serviceRepo,
		Staff:        staffRepo,
		Appointments: appointmentRepo,
		Clients:      userRepo,
		Settings:     configSvc,
		Cache:        slotCache,
		Publisher:    notifier,
		Metrics:      metricsSvc,
	}, validate, logr, service.BookingConfig{
		SlotStep: int(cfg.Booking.SlotStep / time.Minute),
		Location: loc,
	})

	fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("export storage init failed", zap.Error(err))
	}
	exportSvc := service.NewExportService(agendaSvc, fileStore,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, RetentionTime: cfg.Exports.SignedURLTTL},
		logr, export.NewCSVExporter(), export.NewPDFExporter())
	queue.Register(service.JobExportCleanup, func(ctx context.Context, job jobs.Job) error {
		err := exportSvc.Cleanup(ctx, job.Payload)
		metricsSvc.RecordJob(service.JobExportCleanup, err)
		return err
	})

	queue.Start(ctx)
	defer queue.Stop()
	go scheduleExportCleanup(ctx, queue, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	registerRoutes(r, cfg, routeDeps{
		auth:          handler.NewAuthHandler(authSvc),
		users:         handler.NewUserHandler(userSvc),
		configuration: handler.NewConfigurationHandler(configSvc),
		catalog:       handler.NewCatalogHandler(catalogSvc),
		staff:         handler.NewStaffHandler(staffSvc),
		appointments:  handler.NewAppointmentHandler(bookingSvc),
		agenda:        handler.NewAgendaHandler(agendaSvc),
		exports:       handler.NewExportHandler(exportSvc),
		invoices:      handler.NewInvoiceHandler(invoiceSvc),
		erp:           handler.NewERPHandler(erpSvc),
		metrics:       handler.NewMetricsHandler(metricsSvc),
		tokens:        authSvc,
		audit:         userRepo,
		logger:        logr,
		ready: func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// scheduleExportCleanup enqueues the purge of expired export files.
func scheduleExportCleanup(ctx context.Context, queue *jobs.Queue, logr *zap.Logger) {
	ticker := time.NewTicker(exportCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := queue.Enqueue(service.JobExportCleanup, nil); err != nil {
				logr.Warn("failed to schedule export cleanup", zap.Error(err))
			}
		}
	}
}
