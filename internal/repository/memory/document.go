package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/repository"
)

var errTokenCollision = errors.New("коллизия токена")

// DocumentStore: реестр документов в памяти.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]model.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]model.Document)}
}

var _ repository.DocumentRepository = (*DocumentStore)(nil)

func (s *DocumentStore) Create(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("%w: документ %s уже зарегистрирован", repository.ErrConflict, doc.ID)
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *DocumentStore) ListByScope(_ context.Context, scopeID string, filter model.DocumentFilter) ([]*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*model.Document, 0)
	for _, d := range s.docs {
		if d.ScopeID != scopeID {
			continue
		}
		if filter.CategoryID != nil && *filter.CategoryID != "" && d.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Year != nil && d.Year != *filter.Year {
			continue
		}
		doc := d
		matched = append(matched, &doc)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	offset := max(filter.Offset, 0)
	if offset >= len(matched) {
		return []*model.Document{}, nil
	}
	matched = matched[offset:]
	if limit := repository.NormalizeLimit(filter.Limit); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *DocumentStore) GetInScope(_ context.Context, scopeID, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok || d.ScopeID != scopeID {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}
