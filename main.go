package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nijaru/yt-transcript/config"
	"github.com/nijaru/yt-transcript/handlers"
	"github.com/nijaru/yt-transcript/logger"
	"github.com/nijaru/yt-transcript/middleware"
	"github.com/nijaru/yt-transcript/repository"
	"github.com/nijaru/yt-transcript/repository/postgres"
	"github.com/nijaru/yt-transcript/repository/sqlite"
	"github.com/nijaru/yt-transcript/retry"
	transcriptService "github.com/nijaru/yt-transcript/services/transcript"
	"github.com/nijaru/yt-transcript/storage"
	"github.com/nijaru/yt-transcript/transcript"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging, err := logger.New(cfg.LogDir, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Close()
	logrus.SetOutput(logging.Writer)
	logrus.SetLevel(logging.Logger.GetLevel())
	logrus.SetFormatter(logging.Logger.Formatter)
	appLog := logrus.NewEntry(logging.Logger)

	ctx := context.Background()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize repository")
	}
	defer repo.Close()

	var archive transcriptService.Archive
	if cfg.Archive.Enabled() {
		a, err := storage.NewArchive(ctx, storage.ArchiveConfig{
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			Bucket:    cfg.Archive.Bucket,
			Prefix:    cfg.Archive.Prefix,
		})
		if err != nil {
			appLog.WithError(err).Fatal("Failed to initialize transcript archive")
		}
		archive = a
	}

	resolver := newResolver(cfg, appLog)

	service := transcriptService.NewService(repo, archive, resolver, transcriptService.Config{
		Retry: retry.Policy{
			Attempts:       cfg.Resolve.Attempts,
			AttemptTimeout: cfg.Resolve.AttemptTimeout,
			InitialWait:    cfg.Resolve.InitialBackoff,
			MaxWait:        cfg.Resolve.MaxBackoff,
			Multiplier:     cfg.Resolve.Multiplier,
		},
		CacheTTL: cfg.Resolve.CacheTTL,
	}, appLog)

	queue := transcriptService.NewJobQueue(transcriptService.QueueConfig{
		Workers:   cfg.Queue.Workers,
		Capacity:  cfg.Queue.Capacity,
		HungAfter: cfg.Queue.HungAfter,
	}, logging.Worker)
	queue.Start(service.Get)

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: !cfg.Debug,
		StrictRouting:         true,
		CaseSensitive:         true,
		AppName:               "yt-transcript " + cfg.Version,
	})

	setupMiddleware(app, cfg, logging)
	setupRoutes(app, cfg, service, queue)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		appLog.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			appLog.WithError(err).Error("Server shutdown error")
		}
		queue.Close()
	}()

	serverAddr := ":" + cfg.ServerPort
	appLog.WithField("addr", serverAddr).Info("Server starting")
	if err := app.Listen(serverAddr); err != nil && err != http.ErrServerClosed {
		appLog.WithError(err).Fatal("Server error")
	}
}

func openRepository(ctx context.Context, cfg *config.Config) (repository.TranscriptRepository, error) {
	if cfg.Database.Driver == config.DriverPostgres {
		return postgres.Connect(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxConns:        int32(cfg.Database.MaxConnections),
			MinConns:        int32(cfg.Database.MaxIdleConnections),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		})
	}

	db, err := sqlite.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	dbConfig := sqlite.DefaultDBConfig()
	dbConfig.MaxConnections = cfg.Database.MaxConnections
	dbConfig.MaxIdleConnections = cfg.Database.MaxIdleConnections
	dbConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime

	repo, err := sqlite.NewRepository(ctx, db, dbConfig)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{Repository: repo, db: db}, nil
}

// sqliteStore closes the database along with the repository.
type sqliteStore struct {
	*sqlite.Repository
	db *sql.DB
}

func (s *sqliteStore) Close() error {
	if err := s.Repository.Close(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

func newResolver(cfg *config.Config, log *logrus.Entry) *transcript.Resolver {
	tc := cfg.Transcript
	client := &http.Client{Timeout: tc.HTTPTimeout}
	// Hosted API and YouTube calls share one outbound budget.
	limiter := rate.NewLimiter(rate.Limit(tc.RequestsPerSecond), tc.Burst)

	opts := []transcript.Option{
		transcript.WithHTTPClient(client),
		transcript.WithLimiter(limiter),
		transcript.WithLogger(log),
	}

	var hosted transcript.Hosted
	if tc.HostedAPIKey != "" {
		hosted = transcript.NewHostedStrategy(transcript.HostedConfig{
			Endpoint:        tc.HostedEndpoint,
			APIKey:          tc.HostedAPIKey,
			KeyHeader:       tc.HostedKeyHeader,
			WatchURL:        tc.WatchURL,
			BreakerFailures: uint32(tc.BreakerFailures),
			BreakerCooldown: tc.BreakerCooldown,
		}, opts...)
	} else {
		log.Info("Hosted transcript API disabled, scraping watch pages only")
	}

	direct := transcript.NewDirectStrategy(transcript.DirectConfig{
		WatchURL:       tc.WatchURL,
		UserAgent:      tc.UserAgent,
		ConsentCookie:  tc.ConsentCookie,
		AcceptLanguage: tc.AcceptLanguage,
		MaxPageBytes:   tc.MaxPageBytes,
	}, opts...)

	return transcript.NewResolver(hosted, direct, transcript.WithLogger(log))
}

func setupMiddleware(app *fiber.App, cfg *config.Config, logging *logger.Logging) {
	if cfg.Middleware.EnableRecover {
		app.Use(recover.New(recover.Config{
			EnableStackTrace: cfg.Debug,
		}))
	}

	if cfg.Middleware.EnableRequestID {
		app.Use(requestid.New(requestid.Config{
			Header: fiber.HeaderXRequestID,
			Generator: func() string {
				return uuid.New().String()
			},
		}))
	}

	app.Use(middleware.RequestLogger(logging.Logger))

	if cfg.Middleware.EnableLogger {
		app.Use(fiberLogger.New(logging.Access))
	}

	if cfg.Middleware.EnableCORS && cfg.CORS.Enabled {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(cfg.CORS.AllowedOrigins, ","),
			AllowMethods:     strings.Join(cfg.CORS.AllowedMethods, ","),
			AllowHeaders:     strings.Join(cfg.CORS.AllowedHeaders, ","),
			ExposeHeaders:    strings.Join(cfg.CORS.ExposedHeaders, ","),
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}))
	}

	if cfg.Middleware.EnableRateLimit && cfg.RateLimit.Enabled {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit.RequestsPerMinute,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/health"
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"success": false,
					"error":   "Rate limit exceeded",
				})
			},
		}))
	}

	if cfg.Middleware.EnableCompress {
		app.Use(compress.New(compress.Config{
			Level: compress.LevelDefault,
		}))
	}

	if cfg.Middleware.EnableETag {
		app.Use(etag.New())
	}

	if cfg.Middleware.EnableDebugMode && cfg.Debug {
		app.Use(func(c *fiber.Ctx) error {
			c.Set("X-Debug-Mode", "true")
			return c.Next()
		})
	}

	if cfg.RequestTimeout > 0 {
		app.Use(func(c *fiber.Ctx) error {
			ctx, cancel := context.WithTimeout(c.UserContext(), cfg.RequestTimeout)
			defer cancel()
			c.SetUserContext(ctx)
			return c.Next()
		})
	}
}

func setupRoutes(app *fiber.App, cfg *config.Config, service transcriptService.Service, queue handlers.Queue) {
	handlers.NewTranscriptHandler(service, queue, cfg.AlwaysOK).Register(app)
	app.Get("/health", handlers.HealthHandler)
}
