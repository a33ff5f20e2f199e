// validator.go: проверка временных токенов доступа.
//
// Результат двоичный: Grant или ErrInvalidToken. Причина отказа
// (формат, неизвестный токен, не approved, истёк) пишется только
// в лог и метрики, чтобы не давать оракула для перебора токенов.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/repository"
)

// Grant: право читать документы одного scope до ExpiresAt.
type Grant struct {
	RequestID string
	ScopeID   string
	ExpiresAt time.Time
}

// AccessValidator проверяет токены по хранилищу заявок.
//
// Кэш хранит только положительные результаты: одобренный токен терминален,
// а его срок неизменен. Срок сравнивается с now при каждом вызове,
// в том числе для записей из кэша.
type AccessValidator struct {
	repo   repository.AccessRequestRepository
	cache  *expirable.LRU[string, Grant]
	logger *slog.Logger
}

// NewAccessValidator создаёт валидатор. cacheSize = 0 отключает кэш.
func NewAccessValidator(
	repo repository.AccessRequestRepository,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *AccessValidator {
	v := &AccessValidator{
		repo:   repo,
		logger: logger.With(slog.String("component", "access_validator")),
	}
	if cacheSize > 0 {
		v.cache = expirable.NewLRU[string, Grant](cacheSize, nil, cacheTTL)
	}
	return v
}

// Validate возвращает Grant, если токен выпущен, заявка approved и now < expiresAt.
func (v *AccessValidator) Validate(ctx context.Context, token string, now time.Time) (*Grant, error) {
	if !wellFormedToken(token) {
		return nil, v.reject("malformed", "")
	}

	if v.cache != nil {
		if g, ok := v.cache.Get(token); ok {
			if now.Before(g.ExpiresAt) {
				validationCacheHits.Inc()
				tokenValidations.WithLabelValues("valid", "").Inc()
				return &g, nil
			}
			v.cache.Remove(token)
			return nil, v.reject("expired", g.RequestID)
		}
	}

	req, err := v.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, v.reject("unknown", "")
		}
		tokenValidations.WithLabelValues("error", "store").Inc()
		return nil, storeUnavailable(err)
	}

	if req.Status != model.StatusApproved || req.TokenExpiresAt == nil || req.Token == nil || *req.Token != token {
		return nil, v.reject("not_approved", req.ID)
	}
	if !now.Before(*req.TokenExpiresAt) {
		return nil, v.reject("expired", req.ID)
	}

	g := Grant{RequestID: req.ID, ScopeID: req.ScopeID, ExpiresAt: *req.TokenExpiresAt}
	if v.cache != nil {
		v.cache.Add(token, g)
	}
	tokenValidations.WithLabelValues("valid", "").Inc()
	return &g, nil
}

func (v *AccessValidator) reject(reason, requestID string) error {
	tokenValidations.WithLabelValues("invalid", reason).Inc()
	v.logger.Debug("Токен отклонён",
		slog.String("reason", reason),
		slog.String("request_id", requestID),
	)
	return ErrInvalidToken
}
