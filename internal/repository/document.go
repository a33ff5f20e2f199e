package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
)

type documentRepo struct {
	db DBTX
}

// NewDocumentRepository создаёт репозиторий реестра документов поверх pgx.
func NewDocumentRepository(db DBTX) DocumentRepository {
	return &documentRepo{db: db}
}

const documentColumns = `id, scope_id, category_id, subcategory_code, year,
	file_name, object_key, content_type, uploaded_by, created_at`

func scanDocument(row pgx.Row) (*model.Document, error) {
	doc := &model.Document{}
	err := row.Scan(
		&doc.ID, &doc.ScopeID, &doc.CategoryID, &doc.SubcategoryCode, &doc.Year,
		&doc.FileName, &doc.ObjectKey, &doc.ContentType, &doc.UploadedBy, &doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	return doc, nil
}

func (r *documentRepo) Create(ctx context.Context, doc *model.Document) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO documents (id, scope_id, category_id, subcategory_code, year,
			file_name, object_key, content_type, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doc.ID, doc.ScopeID, doc.CategoryID, doc.SubcategoryCode, doc.Year,
		doc.FileName, doc.ObjectKey, doc.ContentType, doc.UploadedBy, doc.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: документ %s уже зарегистрирован", ErrConflict, doc.ID)
		}
		return fmt.Errorf("ошибка регистрации документа: %w", err)
	}
	return nil
}

func (r *documentRepo) ListByScope(ctx context.Context, scopeID string, filter model.DocumentFilter) ([]*model.Document, error) {
	where, args := DocumentWhere(scopeID, filter, PostgresPlaceholder)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM documents
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, documentColumns, where, argNum, argNum+1)
	args = append(args, NormalizeLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка документов: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования документа: %w", err)
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

func (r *documentRepo) GetInScope(ctx context.Context, scopeID, id string) (*model.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1 AND scope_id = $2`, documentColumns)
	doc, err := scanDocument(r.db.QueryRow(ctx, query, id, scopeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения документа: %w", err)
	}
	return doc, nil
}
