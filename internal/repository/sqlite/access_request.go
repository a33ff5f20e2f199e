// Пакет sqlite: реализация хранилищ шлюза поверх SQLite (modernc.org/sqlite).
// Время хранится в unix-миллисекундах UTC. Соединение одно, поэтому
// условный UPDATE линеаризуем для каждой заявки.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/repository"
)

// AccessRequestStore: реализация repository.AccessRequestRepository.
type AccessRequestStore struct {
	db *sql.DB
}

// NewAccessRequestStore создаёт хранилище заявок SQLite.
func NewAccessRequestStore(db *sql.DB) *AccessRequestStore {
	return &AccessRequestStore{db: db}
}

var _ repository.AccessRequestRepository = (*AccessRequestStore)(nil)

const accessRequestColumns = `id, code, origin_ip, status, scope_id, created_at_ms,
	token, token_expires_at_ms, decided_at_ms, decided_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccessRequest(row rowScanner) (*model.AccessRequest, error) {
	req := &model.AccessRequest{}
	var (
		status    string
		createdMs int64
		token     sql.NullString
		expiresMs sql.NullInt64
		decidedMs sql.NullInt64
		decidedBy sql.NullString
	)
	if err := row.Scan(
		&req.ID, &req.Code, &req.OriginIP, &status, &req.ScopeID, &createdMs,
		&token, &expiresMs, &decidedMs, &decidedBy,
	); err != nil {
		return nil, err
	}

	req.Status = model.Status(status)
	req.CreatedAt = fromMillis(createdMs)
	if token.Valid {
		req.Token = &token.String
	}
	if expiresMs.Valid {
		t := fromMillis(expiresMs.Int64)
		req.TokenExpiresAt = &t
	}
	if decidedMs.Valid {
		t := fromMillis(decidedMs.Int64)
		req.DecidedAt = &t
	}
	if decidedBy.Valid {
		req.DecidedBy = &decidedBy.String
	}
	return req, nil
}

func (s *AccessRequestStore) UpsertPending(ctx context.Context, in model.NewAccessRequest) (*model.AccessRequest, bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO access_requests (id, code, origin_ip, scope_id, status, created_at_ms)
VALUES (?, ?, ?, ?, 'pending', ?)
ON CONFLICT (code) DO NOTHING;
`, in.ID, in.Code, in.OriginIP, in.ScopeID, in.CreatedAt.UTC().UnixMilli())
	if err != nil {
		return nil, false, fmt.Errorf("ошибка создания заявки: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("ошибка проверки вставки заявки: %w", err)
	}

	req, err := s.GetByCode(ctx, in.Code)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения существующей заявки: %w", err)
	}
	return req, affected == 1, nil
}

func (s *AccessRequestStore) GetByCode(ctx context.Context, code string) (*model.AccessRequest, error) {
	return s.getOne(ctx, `SELECT `+accessRequestColumns+` FROM access_requests WHERE code = ?;`, code)
}

func (s *AccessRequestStore) GetByID(ctx context.Context, id string) (*model.AccessRequest, error) {
	return s.getOne(ctx, `SELECT `+accessRequestColumns+` FROM access_requests WHERE id = ?;`, id)
}

func (s *AccessRequestStore) GetByToken(ctx context.Context, token string) (*model.AccessRequest, error) {
	return s.getOne(ctx, `SELECT `+accessRequestColumns+` FROM access_requests WHERE token = ?;`, token)
}

func (s *AccessRequestStore) getOne(ctx context.Context, query string, arg any) (*model.AccessRequest, error) {
	req, err := scanAccessRequest(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return req, nil
}

func (s *AccessRequestStore) CompareAndSetStatus(ctx context.Context, tr model.Transition) error {
	var expiresMs sql.NullInt64
	if tr.TokenExpiresAt != nil {
		expiresMs = sql.NullInt64{Int64: tr.TokenExpiresAt.UTC().UnixMilli(), Valid: true}
	}
	var token sql.NullString
	if tr.Token != nil {
		token = sql.NullString{String: *tr.Token, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE access_requests
SET status = ?, token = ?, token_expires_at_ms = ?, decided_at_ms = ?, decided_by = ?
WHERE id = ? AND status = ?;
`, string(tr.To), token, expiresMs, tr.DecidedAt.UTC().UnixMilli(), tr.DecidedBy, tr.ID, string(tr.From))
	if err != nil {
		return fmt.Errorf("ошибка перехода заявки: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка проверки перехода заявки: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM access_requests WHERE id = ?;`, tr.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("ошибка проверки существования заявки: %w", err)
	}
	return repository.ErrConflict
}

func (s *AccessRequestStore) ListRecent(ctx context.Context, limit int) ([]*model.AccessRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+accessRequestColumns+`
FROM access_requests
ORDER BY created_at_ms DESC, id DESC
LIMIT ?;
`, repository.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	result := make([]*model.AccessRequest, 0)
	for rows.Next() {
		req, err := scanAccessRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки заявки: %w", err)
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// isUniqueViolation распознаёт SQLITE_CONSTRAINT_UNIQUE и PRIMARYKEY.
func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
