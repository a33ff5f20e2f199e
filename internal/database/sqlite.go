package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/golang-migrate/migrate/v4/database/sqlite" // драйвер миграций sqlite:// (modernc)
	_ "modernc.org/sqlite"
)

// sqlitePragmas: внешние ключи, WAL и ожидание блокировки вместо SQLITE_BUSY.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

// OpenSQLite открывает файл SQLite с одним соединением.
// Единственный писатель делает UPDATE ... WHERE status = 'pending'
// линеаризуемым для одной записи.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?%s", path, sqlitePragmas)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к SQLite: %w", err)
	}

	logger.Info("SQLite открыт", slog.String("path", path))
	return db, nil
}

// MigrateSQLite применяет миграции SQLite. Миграции открывают
// собственное соединение, поэтому вызываются до OpenSQLite.
func MigrateSQLite(path string, logger *slog.Logger) error {
	return runMigrations("migrations/sqlite", "sqlite://"+path, logger)
}

// NewSQLReadinessChecker создаёт проверку готовности для *sql.DB.
func NewSQLReadinessChecker(db *sql.DB) *ReadinessChecker {
	return &ReadinessChecker{name: "SQLite", ping: db.PingContext}
}
