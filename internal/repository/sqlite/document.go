package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/repository"
)

// DocumentStore: реализация repository.DocumentRepository.
type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

var _ repository.DocumentRepository = (*DocumentStore)(nil)

const documentColumns = `id, scope_id, category_id, subcategory_code, year,
	file_name, object_key, content_type, uploaded_by, created_at_ms`

func scanDocument(row rowScanner) (*model.Document, error) {
	doc := &model.Document{}
	var createdMs int64
	if err := row.Scan(
		&doc.ID, &doc.ScopeID, &doc.CategoryID, &doc.SubcategoryCode, &doc.Year,
		&doc.FileName, &doc.ObjectKey, &doc.ContentType, &doc.UploadedBy, &createdMs,
	); err != nil {
		return nil, err
	}
	doc.CreatedAt = fromMillis(createdMs)
	return doc, nil
}

func (s *DocumentStore) Create(ctx context.Context, doc *model.Document) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO documents (id, scope_id, category_id, subcategory_code, year,
  file_name, object_key, content_type, uploaded_by, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, doc.ID, doc.ScopeID, doc.CategoryID, doc.SubcategoryCode, doc.Year,
		doc.FileName, doc.ObjectKey, doc.ContentType, doc.UploadedBy, doc.CreatedAt.UTC().UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: документ %s уже зарегистрирован", repository.ErrConflict, doc.ID)
		}
		return fmt.Errorf("ошибка регистрации документа: %w", err)
	}
	return nil
}

func (s *DocumentStore) ListByScope(ctx context.Context, scopeID string, filter model.DocumentFilter) ([]*model.Document, error) {
	where, args := repository.DocumentWhere(scopeID, filter, func(int) string { return "?" })
	args = append(args, repository.NormalizeLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
`+where+`
ORDER BY created_at_ms DESC, id DESC
LIMIT ? OFFSET ?;
`, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка документов: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки документа: %w", err)
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

func (s *DocumentStore) GetInScope(ctx context.Context, scopeID, id string) (*model.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ? AND scope_id = ?;`, id, scopeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения документа: %w", err)
	}
	return doc, nil
}
