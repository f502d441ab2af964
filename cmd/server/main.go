package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mteam-client/internal/cache"
	"mteam-client/internal/config"
	"mteam-client/internal/credentials"
	"mteam-client/internal/downloader"
	apphttp "mteam-client/internal/http"
	"mteam-client/internal/repository/sqlite"
	"mteam-client/internal/service"
	"mteam-client/internal/session"
	"mteam-client/internal/storage"
	"mteam-client/internal/tracker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}
	if strings.TrimSpace(cfg.Auth.RegisterPassword) == "" {
		logger.Fatalf("auth registration password is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	downloadRepo := sqlite.NewDownloadRepository(db)
	historyRepo := sqlite.NewHistoryRepository(db)
	favoriteRepo := sqlite.NewFavoriteRepository(db)
	eventRepo := sqlite.NewEventRepository(db)
	userRepo := sqlite.NewUserRepository(db)

	for name, init := range map[string]func(context.Context) error{
		"download repository": downloadRepo.Init,
		"history repository":  historyRepo.Init,
		"favorite repository": favoriteRepo.Init,
		"event repository":    eventRepo.Init,
		"user repository":     userRepo.Init,
	} {
		if err := init(ctx); err != nil {
			logger.Fatalf("init %s: %v", name, err)
		}
	}

	credStore, err := credentials.NewFileStore(cfg.Tracker.CredentialsPath)
	if err != nil {
		logger.Fatalf("open credential store: %v", err)
	}

	client := tracker.NewClient(tracker.Config{
		BaseURL: cfg.Tracker.BaseURL,
		Timeout: cfg.Tracker.Timeout,
		Logger:  logger,
	}, credStore)

	resultCache, err := cache.New(cfg.Cache.Dir, logger)
	if err != nil {
		logger.Fatalf("open result cache: %v", err)
	}
	resultCache.StartMaintenance(ctx)

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	manager := downloader.NewManager(downloader.Config{
		DownloadDir:   cfg.Download.Dir,
		MaxConcurrent: cfg.Download.MaxConcurrent,
		Logger:        logger,
		Archive:       storageSvc,
		ArchiveBucket: cfg.Storage.Bucket,
	}, downloadRepo, eventRepo)

	if err := manager.Start(ctx); err != nil {
		logger.Fatalf("start download manager: %v", err)
	}

	sess := session.New(client, resultCache, historyRepo, logger)
	userService := service.NewUserService(userRepo, cfg.Auth.RegisterPassword)
	credService := service.NewCredentialService(credStore, client)
	auth := apphttp.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		sess,
		client,
		manager,
		resultCache,
		historyRepo,
		favoriteRepo,
		eventRepo,
		userService,
		credService,
		auth,
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	manager.Shutdown()

	logger.Info("bye")
}

// buildStorage is optional: without a bucket the service runs with archival
// disabled.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("no storage bucket configured, archival disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
