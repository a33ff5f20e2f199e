// documents.go: чтение реестра документов по временному токену посетителя.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/objectclient"
	"github.com/woredasystem/woreda1inspection/internal/repository"
)

// ObjectOpener: источник содержимого документов.
// Реализуется objectclient.Client.
type ObjectOpener interface {
	Open(ctx context.Context, objectKey, rangeHeader string) (*objectclient.Object, error)
}

// DocumentService отдаёт документы только в пределах scope, выданного токеном.
type DocumentService struct {
	docs      repository.DocumentRepository
	validator *AccessValidator
	objects   ObjectOpener
	clock     Clock
	logger    *slog.Logger
}

// NewDocumentService создаёт сервис документов.
// objects может быть nil: тогда OpenContent отвечает ErrObjectStoreUnavailable.
func NewDocumentService(
	docs repository.DocumentRepository,
	validator *AccessValidator,
	objects ObjectOpener,
	clock Clock,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		docs:      docs,
		validator: validator,
		objects:   objects,
		clock:     clock,
		logger:    logger.With(slog.String("component", "document_service")),
	}
}

// List возвращает документы scope токена, новые первыми.
func (s *DocumentService) List(ctx context.Context, token string, filter model.DocumentFilter) ([]*model.Document, *Grant, error) {
	grant, err := s.validator.Validate(ctx, token, s.clock.Now())
	if err != nil {
		return nil, nil, err
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, nil, validationError("limit и offset не могут быть отрицательными")
	}
	filter.Limit = repository.NormalizeLimit(filter.Limit)

	docs, err := s.docs.ListByScope(ctx, grant.ScopeID, filter)
	if err != nil {
		return nil, nil, storeUnavailable(err)
	}
	return docs, grant, nil
}

// Get возвращает документ, если он принадлежит scope токена.
// Чужой документ неотличим от несуществующего.
func (s *DocumentService) Get(ctx context.Context, token, documentID string) (*model.Document, error) {
	grant, err := s.validator.Validate(ctx, token, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return s.getInScope(ctx, grant.ScopeID, documentID)
}

// OpenContent открывает поток содержимого документа. Вызывающий закрывает Body.
func (s *DocumentService) OpenContent(ctx context.Context, token, documentID, rangeHeader string) (*model.Document, *objectclient.Object, error) {
	doc, err := s.Get(ctx, token, documentID)
	if err != nil {
		return nil, nil, err
	}
	if s.objects == nil {
		return nil, nil, ErrObjectStoreUnavailable
	}

	obj, err := s.objects.Open(ctx, doc.ObjectKey, rangeHeader)
	if err != nil {
		if errors.Is(err, objectclient.ErrObjectNotFound) {
			s.logger.Warn("Объект документа отсутствует в хранилище",
				slog.String("document_id", doc.ID),
				slog.String("object_key", doc.ObjectKey),
			)
			return nil, nil, ErrNotFound
		}
		s.logger.Error("Ошибка загрузки объекта документа",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()),
		)
		return nil, nil, ErrObjectStoreUnavailable
	}
	return doc, obj, nil
}

func (s *DocumentService) getInScope(ctx context.Context, scopeID, documentID string) (*model.Document, error) {
	if _, err := uuid.Parse(documentID); err != nil {
		return nil, ErrNotFound
	}
	doc, err := s.docs.GetInScope(ctx, scopeID, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeUnavailable(err)
	}
	return doc, nil
}
