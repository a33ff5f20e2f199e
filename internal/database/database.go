// Пакет database: подключение к хранилищу заявок (PostgreSQL через pgxpool
// или SQLite через modernc), применение миграций golang-migrate
// и проверки готовности для health endpoint.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/woredasystem/woreda1inspection/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Параметры пула: заявок немного, но опрос статуса идёт каждые 2 секунды
// от каждого посетителя.
const (
	poolMaxConns        = 20
	poolMaxConnIdleTime = 5 * time.Minute
	pingAttempts        = 5
	pingBackoff         = time.Second
)

// Connect открывает пул pgxpool и дожидается первого успешного ping.
// PostgreSQL в кластере может подниматься позже шлюза, поэтому ping
// повторяется pingAttempts раз с линейной паузой.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("разбор DSN PostgreSQL: %w", err)
	}
	poolCfg.MaxConns = poolMaxConns
	poolCfg.MaxConnIdleTime = poolMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("создание пула PostgreSQL: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if attempt == pingAttempts {
			pool.Close()
			return nil, fmt.Errorf("PostgreSQL недоступен после %d попыток: %w", attempt, err)
		}
		logger.Warn("PostgreSQL не отвечает, повтор",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * pingBackoff):
		}
	}

	logger.Info("PostgreSQL подключен",
		slog.String("host", cfg.DBHost),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)
	return pool, nil
}

// Migrate применяет миграции PostgreSQL (драйвер pgx5 golang-migrate).
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	return runMigrations("migrations/postgres", migrateURL(cfg), logger)
}

// migrateURL: URL для golang-migrate, логин и пароль экранируются.
func migrateURL(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort)),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// runMigrations применяет все миграции из каталога dir к базе по dbURL.
func runMigrations(dir, dbURL string, logger *slog.Logger) error {
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("миграции %s: %w", dir, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("инициализация golang-migrate: %w", err)
	}
	defer m.Close()

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("Схема актуальна", slog.String("source", dir))
		return nil
	case err != nil:
		return fmt.Errorf("применение миграций %s: %w", dir, err)
	}

	if version, dirty, err := m.Version(); err == nil {
		logger.Info("Схема обновлена",
			slog.String("source", dir),
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	}
	return nil
}

// ReadinessChecker пингует хранилище заявок для /health/ready.
type ReadinessChecker struct {
	name string
	ping func(ctx context.Context) error
}

const readinessTimeout = 3 * time.Second

// NewReadinessChecker создаёт проверку готовности PostgreSQL.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{name: "PostgreSQL", ping: pool.Ping}
}

// NewStaticReadinessChecker создаёт проверку для хранилища в памяти,
// которое доступно всё время жизни процесса.
func NewStaticReadinessChecker() *ReadinessChecker {
	return &ReadinessChecker{name: "memory", ping: func(context.Context) error { return nil }}
}

// CheckReady возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		return "fail", c.name + ": " + err.Error()
	}
	return "ok", c.name + " отвечает"
}
