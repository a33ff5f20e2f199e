// dephealth.go: мониторинг зависимостей шлюза через topologymetrics SDK.
//
// Мониторятся:
//   - PostgreSQL: SQL checker через существующий pgxpool (critical)
//   - Keycloak: HTTP checker к JWKS endpoint (не critical: без него
//     недоступна только админская часть, посетители продолжают работать)
//
// Метрики app_dependency_* публикуются на /metrics.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
)

// DephealthService: мониторинг зависимостей.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// DephealthParams: параметры мониторинга.
type DephealthParams struct {
	ServiceID     string
	Group         string
	DB            *sql.DB // из pgxpool через stdlib.OpenDBFromPool()
	PgConnURL     string  // только для лейблов, пароль не нужен
	JWKSURL       string
	CheckInterval time.Duration
}

// NewDephealthService создаёт сервис с глобальным Prometheus registry.
func NewDephealthService(p DephealthParams, logger *slog.Logger) (*DephealthService, error) {
	pgDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(p.PgConnURL),
		dephealth.CheckInterval(p.CheckInterval),
		dephealth.Critical(true),
	}

	opts := make([]dephealth.Option, 0, 3)
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(p.DB)), pgDepOpts...),
	)

	if p.JWKSURL != "" {
		kcDepOpts := []dephealth.DependencyOption{
			dephealth.FromURL(p.JWKSURL),
			dephealth.CheckInterval(p.CheckInterval),
			dephealth.Critical(false),
		}
		if path, tls, err := jwksHealthTarget(p.JWKSURL); err == nil {
			kcDepOpts = append(kcDepOpts, dephealth.WithHTTPHealthPath(path))
			if tls {
				kcDepOpts = append(kcDepOpts, dephealth.WithHTTPTLSSkipVerify(false))
			}
		} else {
			logger.Warn("Некорректный JWKS URL, проверка Keycloak по корню",
				slog.String("url", p.JWKSURL),
				slog.String("error", err.Error()),
			)
		}
		opts = append(opts, dephealth.HTTP("keycloak", kcDepOpts...))
	}

	dh, err := dephealth.New(p.ServiceID, p.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// jwksHealthTarget выделяет из JWKS URL путь проверки и признак TLS.
func jwksHealthTarget(raw string) (path string, tls bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, err
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("в URL %q нет хоста", raw)
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return path, u.Scheme == "https", nil
}
