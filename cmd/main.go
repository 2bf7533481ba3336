package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/Dosada05/tournament-officiating/config"
	"github.com/Dosada05/tournament-officiating/db"
	"github.com/Dosada05/tournament-officiating/feed"
	"github.com/Dosada05/tournament-officiating/handlers"
	"github.com/Dosada05/tournament-officiating/metrics"
	"github.com/Dosada05/tournament-officiating/presence"
	"github.com/Dosada05/tournament-officiating/repositories"
	api "github.com/Dosada05/tournament-officiating/routes"
	"github.com/Dosada05/tournament-officiating/rules"
	"github.com/Dosada05/tournament-officiating/services"
	"github.com/Dosada05/tournament-officiating/storage"
	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("authority", cfg.AuthorityBackend),
		slog.Bool("archive", cfg.ArchiveEnabled()),
		slog.Bool("nats", cfg.NATSURL != ""))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(ctx, dbConn); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Info("database connection established")

	catalog, err := rules.LoadCatalog(cfg.RulesFile)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var bracketAuthority authority.BracketAuthority
	switch cfg.AuthorityBackend {
	case config.AuthorityLocal:
		bracketAuthority = authority.NewLocal()
		logger.Warn("using in-process bracket authority, brackets are lost on restart")
	default:
		bracketAuthority = authority.NewChallonge(authority.ChallongeOptions{
			BaseURL: cfg.ChallongeBaseURL,
			APIKey:  cfg.ChallongeAPIKey,
			Logger:  logger,
		})
	}

	// Архив итоговых таблиц в Cloudflare R2 (опционально)
	var archive storage.StandingsArchive
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewR2Uploader(ctx, storage.R2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			Endpoint:        cfg.R2Endpoint,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize R2 uploader: %w", err)
		}
		archive = storage.NewStandingsArchive(uploader)
		logger.Info("standings archive initialized", slog.String("bucket", cfg.R2BucketName))
	}

	hub := presence.NewHub(logger)
	if err := m.RegisterConnections(registry, hub.ConnectionCount); err != nil {
		return err
	}

	// Инициализация репозиториев
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	registrantRepo := repositories.NewPostgresRegistrantRepository(dbConn)
	standingRepo := repositories.NewPostgresStandingRepository(dbConn)

	// Инициализация сервисов
	tx := services.NewTxRunner(dbConn, logger)
	authService := services.NewAuthService(services.AuthConfig{
		JWTSecret:             []byte(cfg.JWTSecretKey),
		JudgePasscodeHash:     cfg.JudgePasscodeHash,
		OrganizerPasscodeHash: cfg.OrganizerPasscodeHash,
		SessionTTL:            cfg.SessionTTL,
	})
	tournamentService := services.NewTournamentService(tx, tournamentRepo, registrantRepo, standingRepo, bracketAuthority, archive, m, logger)
	registrationService := services.NewRegistrationService(tx, tournamentRepo, registrantRepo, catalog, m, logger)
	logger.Info("services initialized")

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Tournament: handlers.NewTournamentHandler(tournamentService),
		Registrant: handlers.NewRegistrantHandler(registrationService),
		Catalog:    handlers.NewCatalogHandler(catalog),
		WebSocket:  handlers.NewWebSocketHandler(hub, cfg.AllowedOrigins, logger),
	}, authService, api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        m,
		Gatherer:       registry,
	})

	// Лента изменений: Postgres LISTEN -> комнаты хаба, NATS, метрики
	listener := feed.NewPGListener(cfg.DatabaseURL, logger)
	publishers := []feed.Publisher{
		feed.PublisherFunc(func(c feed.Change) error {
			m.FeedChange(c.Table)
			return nil
		}),
		hubPublisher(hub),
	}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("tournament-officiating"), nats.MaxReconnects(-1))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Drain()
		publishers = append(publishers, feed.NewNATSMirror(nc, logger))
		logger.Info("change feed mirrored to NATS", slog.String("url", cfg.NATSURL))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return listener.Run(gctx)
	})
	g.Go(func() error {
		err := feed.Relay(gctx, listener, logger, publishers...)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			return server.Close()
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}

// hubPublisher tells the judge devices of a tournament to reconcile. Resync notifications
// carry no tournament; devices recover through their own polling.
func hubPublisher(hub *presence.Hub) feed.Publisher {
	return feed.PublisherFunc(func(c feed.Change) error {
		if c.Resync || c.TournamentID == 0 {
			return nil
		}
		hub.BroadcastEvent(presence.RoomName(c.TournamentID), presence.Event{
			Type:         presence.EventTournamentChanged,
			TournamentID: c.TournamentID,
			At:           c.At,
		})
		return nil
	})
}
