package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sheve777/kanpai-sub002/config"
	"github.com/sheve777/kanpai-sub002/internal/handlers"
	"github.com/sheve777/kanpai-sub002/internal/server"
	"github.com/sheve777/kanpai-sub002/pkg/availability"
	"github.com/sheve777/kanpai-sub002/pkg/calendar"
	"github.com/sheve777/kanpai-sub002/pkg/chat"
	"github.com/sheve777/kanpai-sub002/pkg/database"
	"github.com/sheve777/kanpai-sub002/pkg/effects"
	"github.com/sheve777/kanpai-sub002/pkg/health"
	"github.com/sheve777/kanpai-sub002/pkg/kafka"
	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/notify"
	"github.com/sheve777/kanpai-sub002/pkg/quota"
	"github.com/sheve777/kanpai-sub002/pkg/redis"
	"github.com/sheve777/kanpai-sub002/pkg/reports"
	"github.com/sheve777/kanpai-sub002/pkg/repositories"
	"github.com/sheve777/kanpai-sub002/pkg/reservation"
	"github.com/sheve777/kanpai-sub002/pkg/scheduler"
	"github.com/sheve777/kanpai-sub002/pkg/startup"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

const version = "1.4.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "kanpai",
		Short: "Reservation and subscription backend for izakaya stores",
	}

	rootCmd.AddCommand(newServeCmd(), newSweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	// Missing .env is fine; containers set real env vars.
	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(pretty bool, level string) ectologger.Logger {
	var zcfg zap.Config
	if pretty {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	zlog, err := zcfg.Build()
	if err != nil {
		zlog = zap.NewNop()
	}

	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		zlog.Info("log", zap.Any("entry", msg))
	})
}

func connectDatabase(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (database.DB, error) {
	db, err := database.Connect(ctx, database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	instance, ok := db.(*database.DatabaseInstance)
	if !ok {
		return db, nil
	}

	driver, err := migratepg.WithInstance(instance.DB.DB, &migratepg.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		return nil, err
	}

	return db, nil
}

func newSweepCmd() *cobra.Command {
	var monthFlag string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the monthly report sweep once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.PrettyLogs, cfg.LogLevel)

			ctx := cmd.Context()

			month := time.Now().UTC()
			month = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
			if monthFlag != "" {
				month, err = time.Parse("2006-01", monthFlag)
				if err != nil {
					return fmt.Errorf("invalid --month, must be YYYY-MM: %w", err)
				}
			}

			db, err := connectDatabase(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			stores := repositories.NewStoreRepository(db, logger)
			reservationsRepo := repositories.NewReservationRepository(db, logger)
			usage := repositories.NewUsageRepository(db, logger)
			reportRepo := repositories.NewReportRepository(db, logger)
			runs := repositories.NewReportRunRepository(db, logger)

			service := reports.NewService(stores, reservationsRepo, usage, reportRepo, runs, cfg.ReportSweepStoreDelay, logger)

			result, err := service.Sweep(ctx, month, models.TriggerManual)
			if err != nil {
				return err
			}

			logger.Infof("Sweep for %s: %d succeeded, %d failed, %d skipped",
				month.Format("2006-01"), result.Succeeded, result.Failed, result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&monthFlag, "month", "", "month to sweep as YYYY-MM (default: previous month)")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.PrettyLogs, cfg.LogLevel)

			// Refusing to start beats accepting unverifiable webhooks.
			if cfg.LineWebhookEnabled && cfg.LineChannelSecret == "" {
				return fmt.Errorf("LINE_CHANNEL_SECRET is required when the webhook is enabled")
			}

			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := tracing.Setup(ctx, cfg.AppName, cfg.TracingOTLPEndpoint)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	var (
		db          database.DB
		redisClient *redis.Client
		producer    *kafka.Producer
	)

	runner := startup.NewRunner(logger, cfg.StartupMaxAttempts)
	runner.Add(startup.Dependency{
		Name: "postgres",
		Start: func(ctx context.Context) error {
			var err error
			db, err = connectDatabase(ctx, cfg, logger)
			return err
		},
		Stop: func(ctx context.Context) error { return db.Close() },
	})
	runner.Add(startup.Dependency{
		Name: "redis",
		Start: func(ctx context.Context) error {
			var err error
			redisClient, err = redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			return err
		},
		Stop: func(ctx context.Context) error { return redisClient.Close() },
	})
	if cfg.KafkaEnabled {
		runner.Add(startup.Dependency{
			Name: "kafka",
			Start: func(ctx context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaReservationTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
				return nil
			},
			Stop: func(ctx context.Context) error { return producer.Close() },
		})
	}

	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		runner.Stop(stopCtx)
	}()

	// Repositories
	storeRepo := repositories.NewStoreRepository(db, logger)
	seatTypeRepo := repositories.NewSeatTypeRepository(db, logger)
	reservationRepo := repositories.NewReservationRepository(db, logger)
	usageRepo := repositories.NewUsageRepository(db, logger)
	subscriptionRepo := repositories.NewSubscriptionRepository(db, logger)
	reportRepo := repositories.NewReportRepository(db, logger)
	reportRunRepo := repositories.NewReportRunRepository(db, logger)

	// External collaborators
	calendarClient := calendar.NewClient(calendar.Config{
		BaseURL: cfg.CalendarBaseURL,
		APIKey:  cfg.CalendarAPIKey,
		Timeout: cfg.CalendarTimeout,
	}, logger)
	lineClient := notify.NewClient(notify.Config{
		BaseURL:      cfg.LineAPIBaseURL,
		ChannelToken: cfg.LineChannelToken,
		Timeout:      cfg.NotifyTimeout,
	}, logger)
	chatClient := chat.NewClient(chat.Config{
		BaseURL: cfg.ChatAPIBaseURL,
		APIKey:  cfg.ChatAPIKey,
		Model:   cfg.ChatModel,
		Timeout: cfg.ChatTimeout,
	}, logger)

	// Domain services
	engine := availability.NewEngine(storeRepo, seatTypeRepo, reservationRepo, logger)
	coordinator := effects.NewCoordinator(calendarClient, lineClient, reservationRepo, producer, cfg.CalendarTimeout, cfg.NotifyTimeout, logger)
	ledger := reservation.NewLedger(db, engine, reservationRepo, storeRepo, seatTypeRepo, logger, coordinator)
	gate := quota.NewGate(subscriptionRepo, usageRepo, logger)
	chatService := chat.NewService(chatClient, gate, storeRepo, logger)
	reportService := reports.NewService(storeRepo, reservationRepo, usageRepo, reportRepo, reportRunRepo, cfg.ReportSweepStoreDelay, logger)

	var sched *scheduler.Scheduler
	if cfg.ReportSweepEnabled {
		locker := &scheduler.RedisLocker{Inner: redis.NewLocker(redisClient, "kanpai:")}
		sched = scheduler.NewScheduler(reportService, locker, scheduler.Config{
			SweepDay:     cfg.ReportSweepDay,
			PollInterval: cfg.ReportSweepPollInterval,
			LockTTL:      cfg.ReportSweepLockTTL,
		}, logger)
		if err := sched.Start(ctx); err != nil {
			return err
		}
	}

	checker := health.NewChecker(version)
	checker.AddDependency("database", health.PingFunc(db.PingContext))
	checker.AddDependency("redis", redisClient)

	var webhookHandler *handlers.WebhookHandler
	if cfg.LineWebhookEnabled {
		webhookHandler = handlers.NewWebhookHandler(chatService, lineClient, logger)
	}

	srv := server.New(server.Config{
		AppName:           cfg.AppName,
		Port:              cfg.Port,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		AllowOrigins:      cfg.AllowOrigins,
		AllowMethods:      cfg.AllowMethods,
		LineChannelSecret: cfg.LineChannelSecret,
	}, server.Handlers{
		Store:        handlers.NewStoreHandler(storeRepo, seatTypeRepo, logger),
		Availability: handlers.NewAvailabilityHandler(engine, logger),
		Reservation:  handlers.NewReservationHandler(ledger, reservationRepo, logger),
		Usage:        handlers.NewUsageHandler(gate, subscriptionRepo, usageRepo, logger),
		Report:       handlers.NewReportHandler(reportService, reportRunRepo, logger),
		Webhook:      webhookHandler,
		Health:       checker,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down HTTP server cleanly")
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to stop scheduler cleanly")
		}
	}

	return nil
}
