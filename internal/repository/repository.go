// Пакет repository: слой доступа к данным шлюза.
// Интерфейсы хранилищ объявлены здесь; реализация для PostgreSQL
// (чистый SQL через pgx) лежит в этом пакете, для SQLite и памяти
// в подпакетах sqlite и memory.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound: запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict: состояние записи уже не совпадает с ожидаемым.
	ErrConflict = errors.New("конфликт: состояние записи изменено")
)

// Ограничения выборки списка заявок.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// DBTX: интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccessRequestRepository: хранилище заявок на доступ.
// Единственный путь в терминальное состояние: CompareAndSetStatus.
type AccessRequestRepository interface {
	// UpsertPending создаёт заявку в состоянии pending или возвращает
	// существующую с тем же code (в любом состоянии). created = true,
	// если запись создана этим вызовом.
	UpsertPending(ctx context.Context, in model.NewAccessRequest) (req *model.AccessRequest, created bool, err error)
	GetByCode(ctx context.Context, code string) (*model.AccessRequest, error)
	GetByID(ctx context.Context, id string) (*model.AccessRequest, error)
	GetByToken(ctx context.Context, token string) (*model.AccessRequest, error)
	// CompareAndSetStatus атомарно переводит заявку из tr.From в tr.To.
	// ErrNotFound: заявки нет. ErrConflict: статус уже не tr.From.
	CompareAndSetStatus(ctx context.Context, tr model.Transition) error
	// ListRecent возвращает последние заявки, новые первыми.
	ListRecent(ctx context.Context, limit int) ([]*model.AccessRequest, error)
}

// DocumentRepository: чтение реестра документов в пределах scope.
type DocumentRepository interface {
	// Create регистрирует документ (используется конвейером загрузки и тестами).
	Create(ctx context.Context, doc *model.Document) error
	ListByScope(ctx context.Context, scopeID string, filter model.DocumentFilter) ([]*model.Document, error)
	// GetInScope возвращает документ, только если он принадлежит scopeID.
	GetInScope(ctx context.Context, scopeID, id string) (*model.Document, error)
}

// NormalizeLimit приводит limit к диапазону 1..MaxListLimit, 0 даёт значение по умолчанию.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

// DocumentWhere строит WHERE для выборки документов одного scope.
// placeholder возвращает маркер параметра по номеру: $1 для PostgreSQL, ? для SQLite.
func DocumentWhere(scopeID string, filter model.DocumentFilter, placeholder func(n int) string) (where string, args []any) {
	argNum := 1
	conditions := []string{"scope_id = " + placeholder(argNum)}
	args = append(args, scopeID)
	argNum++

	if filter.CategoryID != nil && *filter.CategoryID != "" {
		conditions = append(conditions, "category_id = "+placeholder(argNum))
		args = append(args, *filter.CategoryID)
		argNum++
	}

	if filter.Year != nil {
		conditions = append(conditions, "year = "+placeholder(argNum))
		args = append(args, *filter.Year)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// PostgresPlaceholder: маркер параметра pgx.
func PostgresPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
