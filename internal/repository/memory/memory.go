// Пакет memory: хранилища шлюза в памяти процесса.
// Используется для локального запуска (AG_STORE_DRIVER=memory) и в тестах
// сервисного слоя. Все операции сериализуются одним мьютексом хранилища.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/repository"
)

// AccessRequestStore: реализация repository.AccessRequestRepository в памяти.
type AccessRequestStore struct {
	mu      sync.RWMutex
	byID    map[string]*model.AccessRequest
	byCode  map[string]string
	byToken map[string]string
}

func NewAccessRequestStore() *AccessRequestStore {
	return &AccessRequestStore{
		byID:    make(map[string]*model.AccessRequest),
		byCode:  make(map[string]string),
		byToken: make(map[string]string),
	}
}

var _ repository.AccessRequestRepository = (*AccessRequestStore)(nil)

func (s *AccessRequestStore) UpsertPending(_ context.Context, in model.NewAccessRequest) (*model.AccessRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byCode[in.Code]; ok {
		return clone(s.byID[id]), false, nil
	}

	req := &model.AccessRequest{
		ID:        in.ID,
		Code:      in.Code,
		OriginIP:  in.OriginIP,
		Status:    model.StatusPending,
		ScopeID:   in.ScopeID,
		CreatedAt: in.CreatedAt.UTC(),
	}
	s.byID[req.ID] = req
	s.byCode[req.Code] = req.ID
	return clone(req), true, nil
}

func (s *AccessRequestStore) GetByCode(_ context.Context, code string) (*model.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byCode, code)
}

func (s *AccessRequestStore) GetByID(_ context.Context, id string) (*model.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(req), nil
}

func (s *AccessRequestStore) GetByToken(_ context.Context, token string) (*model.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byToken, token)
}

func (s *AccessRequestStore) lookup(index map[string]string, key string) (*model.AccessRequest, error) {
	id, ok := index[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *AccessRequestStore) CompareAndSetStatus(_ context.Context, tr model.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.byID[tr.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if req.Status != tr.From {
		return repository.ErrConflict
	}
	if tr.Token != nil {
		if _, taken := s.byToken[*tr.Token]; taken {
			return errTokenCollision
		}
	}

	decidedAt := tr.DecidedAt.UTC()
	decidedBy := tr.DecidedBy
	req.Status = tr.To
	req.DecidedAt = &decidedAt
	req.DecidedBy = &decidedBy
	if tr.Token != nil {
		token := *tr.Token
		expires := tr.TokenExpiresAt.UTC()
		req.Token = &token
		req.TokenExpiresAt = &expires
		s.byToken[token] = req.ID
	}
	return nil
}

func (s *AccessRequestStore) ListRecent(_ context.Context, limit int) ([]*model.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*model.AccessRequest, 0, len(s.byID))
	for _, req := range s.byID {
		all = append(all, req)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	limit = repository.NormalizeLimit(limit)
	if len(all) > limit {
		all = all[:limit]
	}
	result := make([]*model.AccessRequest, 0, len(all))
	for _, req := range all {
		result = append(result, clone(req))
	}
	return result, nil
}

// clone возвращает глубокую копию, чтобы вызывающий не менял хранимую запись.
func clone(req *model.AccessRequest) *model.AccessRequest {
	c := *req
	if req.Token != nil {
		v := *req.Token
		c.Token = &v
	}
	if req.TokenExpiresAt != nil {
		v := *req.TokenExpiresAt
		c.TokenExpiresAt = &v
	}
	if req.DecidedAt != nil {
		v := *req.DecidedAt
		c.DecidedAt = &v
	}
	if req.DecidedBy != nil {
		v := *req.DecidedBy
		c.DecidedBy = &v
	}
	return &c
}
