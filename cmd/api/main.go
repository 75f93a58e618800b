package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-orchestrator/internal/api/http"
	"github.com/spec-kit/support-orchestrator/internal/api/http/handlers"
	"github.com/spec-kit/support-orchestrator/internal/auth"
	"github.com/spec-kit/support-orchestrator/internal/config"
	"github.com/spec-kit/support-orchestrator/internal/domain"
	"github.com/spec-kit/support-orchestrator/internal/events"
	"github.com/spec-kit/support-orchestrator/internal/kafka"
	"github.com/spec-kit/support-orchestrator/internal/observability"
	"github.com/spec-kit/support-orchestrator/internal/persistence"
	"github.com/spec-kit/support-orchestrator/internal/repository"
	"github.com/spec-kit/support-orchestrator/internal/service"
	"github.com/spec-kit/support-orchestrator/internal/session"
	"github.com/spec-kit/support-orchestrator/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisStore := persistence.NewRedis(cfg.Redis, logger)
	defer redisStore.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	queueRepo := repository.NewQueueRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	repRepo := repository.NewRepRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	producer.RegisterWith(dispatcher)
	defer producer.Close() //nolint:errcheck

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:       ticketRepo,
		QueueRepo:        queueRepo,
		ConversationRepo: conversationRepo,
		MessageRepo:      messageRepo,
		HistoryRepo:      historyRepo,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		TicketRepo:       ticketRepo,
		QueueRepo:        queueRepo,
		RepRepo:          repRepo,
		ConversationRepo: conversationRepo,
		MessageRepo:      messageRepo,
		HistoryRepo:      historyRepo,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	queueService := service.NewQueueService(service.QueueDependencies{
		QueueRepo:  queueRepo,
		TicketRepo: ticketRepo,
		Logger:     logger,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		CustomerRepo: customerRepo,
		RepRepo:      repRepo,
		Tokens:       tokenManager,
		BcryptCost:   cfg.Auth.BcryptCost,
		Logger:       logger,
	})

	notificationService := service.NewNotificationService(0, logger)
	notificationService.RegisterWith(dispatcher)
	go worker.NewNotificationWorker(notificationService, logger).Run(ctx)

	go worker.NewQueueReconciler(ticketRepo, queueRepo, cfg.Session.ReconcileInterval(), logger).Run(ctx)

	coordinator := session.NewCoordinator(session.CoordinatorDependencies{
		Tickets: ticketService,
		OpenTicket: func(ctx context.Context, intake session.TicketIntake) (*domain.Ticket, error) {
			result, err := ticketService.CreateFromIntake(ctx, service.IntakeInput{
				CustomerID:       intake.CustomerID,
				VendorID:         intake.VendorID,
				Description:      intake.Description,
				Category:         intake.Category,
				Severity:         intake.Severity,
				Urgency:          intake.Urgency,
				PreferredContact: intake.PreferredContact,
			})
			if err != nil {
				return nil, err
			}
			return result.Ticket, nil
		},
		Registry: session.NewRedisRegistry(redisStore.Client, ""),
		Providers: func(*domain.Ticket, domain.AgentKind) (session.Providers, error) {
			return session.LoopbackProviders(), nil
		},
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Config:     cfg.Session,
		Logger:     logger,
	})

	authMiddleware := auth.NewAuthMiddleware(tokenManager, customerRepo, repRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisStore),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, escalationService),
		Queue:          handlers.NewQueueHandler(queueService),
		Sessions:       handlers.NewSessionsHandler(coordinator),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	coordinator.Shutdown(shutdownCtx)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
