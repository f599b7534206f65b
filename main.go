package main

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/hexfeed/config"
	"github.com/cppla/hexfeed/gateway"
	"github.com/cppla/hexfeed/identity"
	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/notifications"
	"github.com/cppla/hexfeed/repository"
	"github.com/cppla/hexfeed/routes"
	"github.com/cppla/hexfeed/storage"
	"github.com/cppla/hexfeed/utils"
)

// feedStore is a gateway that can also answer whether a post still exists,
// which the orphan upload sweep relies on.
type feedStore interface {
	gateway.Gateway
	Exists(ctx context.Context, id string) (bool, error)
}

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	logger := utils.Logger

	rdb := utils.InitRedis(cfg)

	var notifier gateway.Notifier = gateway.NewLocalNotifier()
	if strings.EqualFold(cfg.Notifier, "redis") {
		if rdb == nil {
			utils.Sugar.Warn("redis notifier requested but redis is not configured, using local notifier")
		} else {
			notifier = gateway.NewRedisNotifier(rdb, cfg.NotifierChannel, logger.Named("notifier"))
		}
	}

	var (
		db    *gorm.DB
		store feedStore
	)
	switch strings.ToLower(cfg.Store) {
	case "memory":
		db = config.InitSQLite(cfg.SQLitePath, &models.Account{}, &models.UploadedFile{})
		store = gateway.NewMemoryGateway(notifier)
	default:
		tables := append([]interface{}{&models.Account{}, &models.UploadedFile{}}, gateway.Tables()...)
		db = config.InitDatabase(tables...)
		store = gateway.NewGormGateway(db, notifier, logger.Named("gateway"))
	}

	repo := repository.NewPostRepository(store, logger.Named("repository"))

	var mailer utils.Mailer
	if cfg.SMTPHost != "" {
		mailer = utils.SMTPMailer{}
	}
	provider := identity.NewLocalProvider(db, identity.LocalOptions{
		JWTSecret:  cfg.JWTSecret,
		SessionTTL: time.Duration(cfg.SessionTTLHours) * time.Hour,
		Mailer:     mailer,
		Logger:     logger.Named("identity"),
	})

	uploader := storage.NewDiskUploader(cfg.UploadDir, cfg.UploadBaseURL, cfg.UploadMaxSizeMB, db, logger.Named("uploads"))
	topics := notifications.NewTopics(rdb, cfg.InstallationID, logger.Named("topics"))

	base, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := utils.NewRealClock()
	grace := time.Duration(cfg.UploadOrphanMinutes) * time.Minute
	cleaner := storage.NewOrphanCleaner(db, store.Exists, grace, clock, logger.Named("cleaner"))
	// Start background cleanup for uploads whose post was never written (best-effort)
	cleaner.Start(base, 5*time.Minute)

	r := routes.SetupRouter(cfg, routes.Dependencies{
		Base:     base,
		Store:    repo,
		Uploader: uploader,
		Provider: provider,
		Topics:   topics,
		Clock:    clock,
		Logger:   logger,
	})

	logger.Info("starting server",
		zap.String("port", cfg.AppPort),
		zap.String("store", cfg.Store),
		zap.String("notifier", cfg.Notifier),
	)
	if err := utils.GraceServer(":"+cfg.AppPort, r, cancel); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
