// approval.go: переход заявки pending → approved / denied.
//
// Единственная точка сериализации: CompareAndSetStatus хранилища.
// Токен выпускается до перехода; если переход проигран, токен
// отбрасывается, а вызывающему возвращается фактический статус.
// Повторов внутри сервиса нет.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/repository"
)

// Decision: результат успешного решения.
type Decision struct {
	Request   *model.AccessRequest
	Status    model.Status
	Token     string
	ExpiresAt time.Time
}

// ApprovalService: координатор решений администраторов.
type ApprovalService struct {
	repo   repository.AccessRequestRepository
	issuer *TokenIssuer
	clock  Clock
	logger *slog.Logger
}

func NewApprovalService(
	repo repository.AccessRequestRepository,
	issuer *TokenIssuer,
	clock Clock,
	logger *slog.Logger,
) *ApprovalService {
	return &ApprovalService{
		repo:   repo,
		issuer: issuer,
		clock:  clock,
		logger: logger.With(slog.String("component", "approval_service")),
	}
}

// Approve одобряет заявку и возвращает выпущенный токен.
func (s *ApprovalService) Approve(ctx context.Context, requestID, decidedBy string) (*Decision, error) {
	return s.decide(ctx, requestID, decidedBy, model.StatusApproved)
}

// Deny отклоняет заявку.
func (s *ApprovalService) Deny(ctx context.Context, requestID, decidedBy string) (*Decision, error) {
	return s.decide(ctx, requestID, decidedBy, model.StatusDenied)
}

func (s *ApprovalService) decide(ctx context.Context, requestID, decidedBy string, to model.Status) (*Decision, error) {
	decision := string(to)

	if _, err := uuid.Parse(requestID); err != nil {
		decisionsTotal.WithLabelValues(decision, "not_found").Inc()
		return nil, ErrNotFound
	}

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.fail(decision, requestID, err)
	}
	if req.Status != model.StatusPending {
		decisionsTotal.WithLabelValues(decision, "conflict").Inc()
		return nil, &AlreadyDecidedError{RequestID: req.ID, Current: req.Status}
	}

	now := truncateInstant(s.clock.Now())
	tr := model.Transition{
		ID:        req.ID,
		From:      model.StatusPending,
		To:        to,
		DecidedAt: now,
		DecidedBy: decidedBy,
	}

	var token string
	var expiresAt time.Time
	if to == model.StatusApproved {
		token, expiresAt, err = s.issuer.Issue(now)
		if err != nil {
			decisionsTotal.WithLabelValues(decision, "error").Inc()
			return nil, err
		}
		tr.Token = &token
		tr.TokenExpiresAt = &expiresAt
	}

	if err := s.repo.CompareAndSetStatus(ctx, tr); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.lostRace(ctx, decision, req.ID)
		}
		return nil, s.fail(decision, requestID, err)
	}

	decisionsTotal.WithLabelValues(decision, "ok").Inc()
	s.logger.Info("Решение по заявке принято",
		slog.String("request_id", req.ID),
		slog.String("code", req.Code),
		slog.String("status", decision),
		slog.String("decided_by", decidedBy),
	)

	req.Status = to
	req.DecidedAt = &now
	req.DecidedBy = &decidedBy
	result := &Decision{Request: req, Status: to}
	if to == model.StatusApproved {
		req.Token = &token
		req.TokenExpiresAt = &expiresAt
		result.Token = token
		result.ExpiresAt = expiresAt
	}
	return result, nil
}

// lostRace перечитывает заявку после проигранного compare-and-set
// и сообщает фактический статус.
func (s *ApprovalService) lostRace(ctx context.Context, decision, requestID string) error {
	decisionsTotal.WithLabelValues(decision, "conflict").Inc()

	current, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return storeUnavailable(err)
	}
	s.logger.Info("Заявка уже решена другим администратором",
		slog.String("request_id", requestID),
		slog.String("attempted", decision),
		slog.String("current", string(current.Status)),
	)
	return &AlreadyDecidedError{RequestID: requestID, Current: current.Status}
}

func (s *ApprovalService) fail(decision, requestID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		decisionsTotal.WithLabelValues(decision, "not_found").Inc()
		return ErrNotFound
	}
	decisionsTotal.WithLabelValues(decision, "error").Inc()
	s.logger.Error("Ошибка решения по заявке",
		slog.String("request_id", requestID),
		slog.String("decision", decision),
		slog.String("error", err.Error()),
	)
	return storeUnavailable(err)
}
