package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/commentservice"
	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/contentservice"
	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/mailservice"
	"github.com/redis/go-redis/v9"
)

type application struct {
	config         *common.Config
	logger         *slog.Logger
	contentManager *contentservice.Manager
	commentService *commentservice.CommentService
	mailService    *mailservice.MailService
	broker         *common.MessageBroker
	limiter        *ipLimiter
	proxies        proxySet
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := common.LoadConfig(".env")
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := common.NewDB(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, 10, 5, 15*time.Minute)
	if err != nil {
		logger.Error("failed to connect to the database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer common.CloseDB(db)

	err = common.RunMigrations(db, "file://migrations")
	if err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	URI := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)
	broker, err := common.NewMessageBroker(URI)
	if err != nil {
		logger.Error("failed to connect to the message broker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer broker.Close()

	err = common.SetupCommentExchange(broker)
	if err != nil {
		logger.Error("failed to setup the comment exchange", slog.String("error", err.Error()))
		os.Exit(1)
	}

	manager, err := newContentManager(cfg, logger)
	if err != nil {
		logger.Error("failed to initialise the content cache", slog.String("error", err.Error()))
		os.Exit(1)
	}

	proxies, err := newProxySet(cfg.TrustedProxies)
	if err != nil {
		logger.Error("failed to parse trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cache := common.NewCache(5*time.Minute, 10*time.Minute)

	app := &application{
		config:         cfg,
		logger:         logger,
		contentManager: manager,
		commentService: commentservice.NewCommentService(db, cache, broker, newCaptchaVerifier(cfg, logger), manager,
			moderationConfig(cfg), commentservice.RateLimitConfig{Limit: cfg.Moderation.RateLimit, Window: cfg.Moderation.RateWindow}, logger),
		mailService: mailservice.NewMailService(broker, cfg.Mail.Host, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.Sender, cfg.Mail.Moderator, cfg.Mail.Port, logger),
		broker:      broker,
		limiter:     newIPLimiter(cfg.Limiter.RequestsPerSecond, cfg.Limiter.Burst),
		proxies:     proxies,
	}

	go app.mailService.NotifyPendingComments()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Content.Watch {
		watcher := contentservice.NewWatcher(manager, cfg.Content.Dir, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("content watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	sched, err := app.newScheduler()
	if err != nil {
		logger.Error("failed to schedule jobs", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	err = app.serve(cfg.Port)
	if err != nil {
		logger.Error("failed to start the server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newContentManager(cfg *common.Config, logger *slog.Logger) (*contentservice.Manager, error) {
	store, err := contentservice.OpenStore(cfg.Content.CacheBackend, cfg.Content.CacheDir, func() (*redis.Client, error) {
		return common.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	})
	if err != nil {
		return nil, err
	}

	compiler, err := contentservice.NewCompiler(contentservice.DefaultCompileOptions())
	if err != nil {
		return nil, err
	}

	return contentservice.NewManager(
		contentservice.NewContentStore(cfg.Content.Dir),
		store,
		compiler,
		contentservice.NewStats(),
		common.NewCache(time.Hour, 10*time.Minute),
		logger,
		cfg.Content.RebuildWorkers,
	), nil
}

func newCaptchaVerifier(cfg *common.Config, logger *slog.Logger) commentservice.CaptchaVerifier {
	if cfg.Captcha.Secret == "" && cfg.Environment == "development" {
		logger.Warn("captcha verification disabled")
		return commentservice.DisabledVerifier{}
	}

	return commentservice.NewSiteVerifyClient(cfg.Captcha.VerifyURL, cfg.Captcha.Secret, cfg.Captcha.Timeout)
}

func moderationConfig(cfg *common.Config) commentservice.ModerationConfig {
	mc := commentservice.DefaultModerationConfig()
	mc.AutoApproveThreshold = cfg.Moderation.ApproveThreshold
	mc.AutoRejectThreshold = cfg.Moderation.RejectThreshold
	mc.MaxLinks = cfg.Moderation.MaxLinks
	if terms := cfg.Moderation.BannedTermList(); len(terms) > 0 {
		mc.BannedTerms = terms
	}

	return mc
}
