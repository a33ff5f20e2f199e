package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
)

// accessRequestRepo: реализация AccessRequestRepository для PostgreSQL.
type accessRequestRepo struct {
	db DBTX
}

// NewAccessRequestRepository создаёт репозиторий заявок поверх pgx.
func NewAccessRequestRepository(db DBTX) AccessRequestRepository {
	return &accessRequestRepo{db: db}
}

const accessRequestColumns = `id, code, origin_ip, status, scope_id, created_at,
	token, token_expires_at, decided_at, decided_by`

// scanAccessRequest сканирует строку результата и приводит время к UTC.
func scanAccessRequest(row pgx.Row) (*model.AccessRequest, error) {
	req := &model.AccessRequest{}
	var status string
	err := row.Scan(
		&req.ID, &req.Code, &req.OriginIP, &status, &req.ScopeID, &req.CreatedAt,
		&req.Token, &req.TokenExpiresAt, &req.DecidedAt, &req.DecidedBy,
	)
	if err != nil {
		return nil, err
	}
	req.Status = model.Status(status)
	req.CreatedAt = req.CreatedAt.UTC()
	if req.TokenExpiresAt != nil {
		t := req.TokenExpiresAt.UTC()
		req.TokenExpiresAt = &t
	}
	if req.DecidedAt != nil {
		t := req.DecidedAt.UTC()
		req.DecidedAt = &t
	}
	return req, nil
}

func (r *accessRequestRepo) UpsertPending(ctx context.Context, in model.NewAccessRequest) (*model.AccessRequest, bool, error) {
	// ON CONFLICT DO NOTHING: гонку двух вставок одного code разрешает уникальный индекс
	query := fmt.Sprintf(`
		INSERT INTO access_requests (id, code, origin_ip, scope_id, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		ON CONFLICT (code) DO NOTHING
		RETURNING %s`, accessRequestColumns)

	req, err := scanAccessRequest(r.db.QueryRow(ctx, query,
		in.ID, in.Code, in.OriginIP, in.ScopeID, in.CreatedAt,
	))
	if err == nil {
		return req, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("ошибка создания заявки: %w", err)
	}

	existing, err := r.GetByCode(ctx, in.Code)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения существующей заявки: %w", err)
	}
	return existing, false, nil
}

func (r *accessRequestRepo) GetByCode(ctx context.Context, code string) (*model.AccessRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM access_requests WHERE code = $1`, accessRequestColumns)
	return r.getOne(ctx, query, code)
}

func (r *accessRequestRepo) GetByID(ctx context.Context, id string) (*model.AccessRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM access_requests WHERE id = $1`, accessRequestColumns)
	return r.getOne(ctx, query, id)
}

func (r *accessRequestRepo) GetByToken(ctx context.Context, token string) (*model.AccessRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM access_requests WHERE token = $1`, accessRequestColumns)
	return r.getOne(ctx, query, token)
}

func (r *accessRequestRepo) getOne(ctx context.Context, query string, arg any) (*model.AccessRequest, error) {
	req, err := scanAccessRequest(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return req, nil
}

func (r *accessRequestRepo) CompareAndSetStatus(ctx context.Context, tr model.Transition) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE access_requests
		SET status = $3, token = $4, token_expires_at = $5, decided_at = $6, decided_by = $7
		WHERE id = $1 AND status = $2`,
		tr.ID, string(tr.From), string(tr.To), tr.Token, tr.TokenExpiresAt, tr.DecidedAt, tr.DecidedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("коллизия токена при переходе заявки %s: %w", tr.ID, err)
		}
		return fmt.Errorf("ошибка перехода заявки: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Ни одна строка не обновлена: заявки нет или её уже решили
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM access_requests WHERE id = $1)`, tr.ID).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка проверки заявки: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *accessRequestRepo) ListRecent(ctx context.Context, limit int) ([]*model.AccessRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM access_requests
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, accessRequestColumns)

	rows, err := r.db.Query(ctx, query, NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	result := make([]*model.AccessRequest, 0)
	for rows.Next() {
		req, err := scanAccessRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, req)
	}
	return result, rows.Err()
}
