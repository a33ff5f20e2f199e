// Точка входа Access Gate: шлюз доступа к архиву документов woreda.
// Загружает конфигурацию, открывает хранилище заявок (PostgreSQL, SQLite
// или память), применяет миграции, создаёт сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с JWT middleware для администраторов.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/woredasystem/woreda1inspection/internal/api/handlers"
	"github.com/woredasystem/woreda1inspection/internal/api/middleware"
	"github.com/woredasystem/woreda1inspection/internal/api/openapi"
	"github.com/woredasystem/woreda1inspection/internal/config"
	"github.com/woredasystem/woreda1inspection/internal/database"
	"github.com/woredasystem/woreda1inspection/internal/objectclient"
	"github.com/woredasystem/woreda1inspection/internal/repository"
	"github.com/woredasystem/woreda1inspection/internal/repository/memory"
	"github.com/woredasystem/woreda1inspection/internal/repository/sqlite"
	"github.com/woredasystem/woreda1inspection/internal/server"
	"github.com/woredasystem/woreda1inspection/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Access Gate запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store_driver", cfg.StoreDriver),
	)

	ctx := context.Background()

	// 3. Хранилище заявок и реестр документов
	var (
		requests     repository.AccessRequestRepository
		documents    repository.DocumentRepository
		storeChecker handlers.ReadinessChecker
		pgDB         *sql.DB
	)

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics: проверки идут через общий пул.
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		requests = repository.NewAccessRequestRepository(pool)
		documents = repository.NewDocumentRepository(pool)
		storeChecker = database.NewReadinessChecker(pool)

	case config.StoreDriverSQLite:
		if err := database.MigrateSQLite(cfg.SQLitePath, logger); err != nil {
			logger.Error("Ошибка миграций SQLite", slog.String("error", err.Error()))
			os.Exit(1)
		}

		db, err := database.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("Ошибка открытия SQLite", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()

		requests = sqlite.NewAccessRequestStore(db)
		documents = sqlite.NewDocumentStore(db)
		storeChecker = database.NewSQLReadinessChecker(db)

	default:
		logger.Warn("Хранилище в памяти: заявки и токены теряются при перезапуске")
		requests = memory.NewAccessRequestStore()
		documents = memory.NewDocumentStore()
		storeChecker = database.NewStaticReadinessChecker()
	}

	// 4. Объектное хранилище документов (опционально)
	// Интерфейс остаётся nil, если хранилище не настроено.
	var objects service.ObjectOpener
	if cfg.ObjectBaseURL != "" {
		client, err := objectclient.New(cfg.ObjectBaseURL, cfg.CACertPath, cfg.ObjectFetchTimeout, logger)
		if err != nil {
			logger.Error("Ошибка создания клиента объектного хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
		objects = client
		logger.Info("Объектное хранилище подключено", slog.String("base_url", cfg.ObjectBaseURL))
	} else {
		logger.Warn("AG_OBJECT_BASE_URL не задан, выдача содержимого документов отключена")
	}

	// 5. Services
	clock := service.SystemClock{}
	accessRequestSvc := service.NewAccessRequestService(
		requests,
		service.NewCodeGenerator(cfg.CodePrefix),
		clock,
		cfg.DefaultScope,
		cfg.PublicBaseURL,
		logger,
	)
	approvalSvc := service.NewApprovalService(
		requests,
		service.NewTokenIssuer(cfg.TokenTTL),
		clock,
		logger,
	)
	accessValidator := service.NewAccessValidator(
		requests,
		cfg.ValidationCacheSize,
		cfg.ValidationCacheTTL,
		logger,
	)
	documentSvc := service.NewDocumentService(documents, accessValidator, objects, clock, logger)

	// 6. Readiness checkers (хранилище + Keycloak)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(storeChecker, kcChecker)

	// 7. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		accessRequestSvc,
		approvalSvc,
		accessValidator,
		documentSvc,
		clock,
		cfg.PollInterval,
		logger,
	)

	// 8. JWT middleware администраторов
	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:             cfg.JWTJWKSURL,
		CACertPath:          cfg.CACertPath,
		Issuer:              cfg.JWTIssuer,
		ApproverGroups:      cfg.RoleApproverGroups,
		ViewerGroups:        cfg.RoleViewerGroups,
		JWKSClientTimeout:   cfg.JWKSClientTimeout,
		JWKSRefreshInterval: cfg.JWKSRefreshInterval,
		JWTLeeway:           cfg.JWTLeeway,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 9. Проверка запросов по OpenAPI контракту
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}
	requestValidator, err := middleware.NewRequestValidator(doc, logger)
	if err != nil {
		logger.Error("Ошибка создания валидатора запросов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. topologymetrics: мониторинг зависимостей (PostgreSQL + Keycloak)
	if pgDB != nil {
		dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthParams{
			ServiceID:     "access-gate",
			Group:         cfg.DephealthGroup,
			DB:            pgDB,
			PgConnURL:     cfg.DatabaseURL(),
			JWKSURL:       cfg.JWTJWKSURL,
			CheckInterval: cfg.DephealthCheckInterval,
		}, logger)
		if dephealthErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dephealthErr.Error()),
			)
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
			defer dephealthSvc.Stop()
		}
	}

	// 11. HTTP-сервер с graceful shutdown
	srv := server.New(cfg, logger, apiHandler, jwtAuth, requestValidator)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Access Gate остановлен")
}
