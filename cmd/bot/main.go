package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc/pool"
	"github.com/xaenox/watchlater-bot/internal/bot"
	"github.com/xaenox/watchlater-bot/internal/metrics"
	"github.com/xaenox/watchlater-bot/internal/server"
	"github.com/xaenox/watchlater-bot/internal/storage"
	"github.com/xaenox/watchlater-bot/pkg/config"
	"go.uber.org/zap"
)

const defaultConfigPath = "config.yaml"

func main() {
	os.Exit(start())
}

// start returns the process exit code so deferred cleanup runs before exiting
func start() int {
	// .env is optional
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config from %s: %v\n", configPath, err)
		return 1
	}

	// Initialize logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err), zap.String("path", configPath))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Bot error", zap.Error(err))
		return 1
	}
	logger.Info("Bot stopped")
	return 0
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapConfig.Level = level

	return zapConfig.Build()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Storage.Kind {
	case config.StorageRedis:
		logger.Info("Using Redis storage")
		return storage.NewRedisStorage(ctx, storage.RedisConfig{
			URL:       cfg.Redis.URL,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger)
	case config.StoragePostgres:
		logger.Info("Using PostgreSQL storage")
		return storage.NewPostgresStorage(ctx, storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
	default:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize storage
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	m := metrics.New(prometheus.DefaultRegisterer)
	b := bot.New(api, api.Self, store, m, logger, bot.Options{
		Owners:    cfg.Bot.Owners,
		SendDelay: cfg.Bot.SendDelay,
	})
	if err := b.SetCommands(); err != nil {
		logger.Warn("Failed to register bot commands", zap.Error(err))
	}

	var (
		updates    tgbotapi.UpdatesChannel
		serverOpts []server.Option
		botStopped = make(chan struct{})
	)
	switch cfg.Bot.Mode {
	case config.ModeWebhook:
		path, err := cfg.WebhookPath()
		if err != nil {
			return err
		}
		webhookUpdates := make(chan tgbotapi.Update, api.Buffer)
		serverOpts = append(serverOpts, server.WithWebhook(path, webhookUpdates, botStopped))
		updates = webhookUpdates

		if err := bot.RegisterWebhook(api, cfg.Webhook.URL, logger); err != nil {
			return err
		}
	default:
		updates = bot.PollUpdates(ctx, api, logger)
	}

	srv := server.New(cfg.Server.BindTo, store, prometheus.DefaultGatherer, logger, serverOpts...)

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	p.Go(srv.Run)
	p.Go(func(ctx context.Context) error {
		defer close(botStopped)
		return b.Run(ctx, updates)
	})

	return p.Wait()
}
