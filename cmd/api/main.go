package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"knowmystatus/internal/auth"
	"knowmystatus/internal/cloudinary"
	"knowmystatus/internal/config"
	"knowmystatus/internal/handler"
	"knowmystatus/internal/logging"
	"knowmystatus/internal/objectstore"
	"knowmystatus/internal/qr"
	"knowmystatus/internal/qrcode"
	"knowmystatus/internal/queue"
	"knowmystatus/internal/scanlog"
	"knowmystatus/internal/store"
	"knowmystatus/internal/teacher"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("refusing to start", zap.Error(err))
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	health := map[string]handler.HealthCheck{}

	var repo teacher.Repository
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		repo = teacher.NewMemoryRepository(nil)
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx, logger); err != nil {
				return err
			}
		}
		health["db"] = db.Healthy
		repo = teacher.NewPostgresRepository(db.Client)
	}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		health["redis"] = redisClient.Healthy
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	} else {
		mem := queue.NewInMemory(256)
		q = mem
		// Without a broker the scan log is drained in-process.
		go func() {
			if err := scanlog.NewConsumer(mem, repo, logger).Run(ctx); err != nil {
				logger.Error("scan log consumer stopped", zap.Error(err))
			}
		}()
	}

	var objects objectstore.Store
	uploadDir := cfg.UploadDir
	staticUploads := false
	if cfg.ObjectStore == "cloudinary" && cfg.CloudinaryConfigured() {
		objects = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logger.Info("cloudinary configured", zap.String("cloud", cfg.CloudinaryCloudName))
	} else {
		if cfg.ObjectStore == "cloudinary" {
			logger.Warn("cloudinary not configured, falling back to disk", zap.String("dir", cfg.UploadDir))
		}
		disk, err := objectstore.NewDisk(cfg.UploadDir, cfg.PublicBaseURL)
		if err != nil {
			return err
		}
		objects = disk
		staticUploads = true
	}

	format, err := qrcode.NewFormatter(cfg.QRLocale, cfg.QRTimezone)
	if err != nil {
		logger.Warn("invalid qr locale settings, using defaults", zap.Error(err))
		format = qrcode.DefaultFormatter
	}

	teachers := teacher.NewService(repo, logger.Named("teacher"), teacher.WithLocation(format.Location))
	qrs := qr.NewService(repo, objects, scanlog.NewPublisher(q, logger.Named("scanlog")),
		qrcode.NewEncoder(cfg.QRModulePx), format, logger.Named("qr"))

	h := handler.New(handler.Deps{
		Teachers:  teachers,
		QR:        qrs,
		Issuer:    auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Tokens:    repo,
		Objects:   objects,
		UploadDir: uploadDir,
		Health:    health,
		Log:       logger.Named("http"),
	})
	r := handler.Router(h, handler.RouterOptions{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		AdminAPIKey:     cfg.AdminAPIKey,
		StaticUploads:   staticUploads,
		TrustedProxies:  cfg.TrustedProxies,
	})
	if cfg.AdminAPIKey == "" {
		logger.Info("admin API disabled, set ADMIN_API_KEY to enable")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}
