package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/plevandm/repairhub-backend/internal/config"
	"github.com/plevandm/repairhub-backend/internal/db"
	"github.com/plevandm/repairhub-backend/internal/eventbus"
	"github.com/plevandm/repairhub-backend/internal/goroutine"
	httpHandlers "github.com/plevandm/repairhub-backend/internal/http/handlers"
	httpRouter "github.com/plevandm/repairhub-backend/internal/http/router"
	"github.com/plevandm/repairhub-backend/internal/logger"
	"github.com/plevandm/repairhub-backend/internal/repository"
	"github.com/plevandm/repairhub-backend/internal/service"
	"github.com/plevandm/repairhub-backend/internal/worker"
	"github.com/plevandm/repairhub-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	// Репозитории.
	escrowRepo := repository.NewEscrowRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Шина доменных событий и вебсокеты.
	bus := eventbus.NewMemoryBus(logger.Log)
	hub := ws.NewHub(logger.Log)
	go hub.Run()

	// Сервисы.
	notificationService := service.NewNotificationService(notificationRepo, hub, logger.Log)
	notificationService.SubscribeToEscrowEvents(bus)

	escrowService := service.NewEscrowService(escrowRepo, bus, service.EscrowSettings{
		FeePercent:  &cfg.PlatformFeePercent,
		GracePeriod: cfg.EscrowGracePeriod,
	})

	// Фоновый возврат просроченных платежей.
	sweeper := worker.NewExpirySweeper(escrowService, cfg.SweepInterval, logger.Log)
	recovery := goroutine.NewRecoveryHandler(logger.Log)
	recovery.SafeGoWithContext(ctx, sweeper.Run)

	// HTTP хэндлеры.
	escrowHandler := httpHandlers.NewEscrowHandler(escrowService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, escrowHandler, notificationHandler, healthHandler, wsHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
