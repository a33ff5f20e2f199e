// access_requests.go: регистрация заявок посетителей, опрос статуса
// и просмотр заявок администратором.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/repository"
)

// RecordInput: данные сканирования QR-кода.
type RecordInput struct {
	Code     string `validate:"required,accesscode"`
	OriginIP string
	ScopeID  string `validate:"required,scopeid"`
}

// StatusView: проекция заявки для опрашивающего клиента.
// Token и ExpiresAt заполнены только для approved.
type StatusView struct {
	Status    model.Status
	Token     *string
	ExpiresAt *time.Time
}

// QRCode: новый код заявки и payload для печати.
type QRCode struct {
	Code    string
	ScopeID string
	URL     string
}

// AccessRequestService: регистрация заявок и чтение их состояния.
type AccessRequestService struct {
	repo          repository.AccessRequestRepository
	codes         *CodeGenerator
	clock         Clock
	validate      *validator.Validate
	defaultScope  string
	publicBaseURL string
	logger        *slog.Logger
}

// NewAccessRequestService создаёт сервис заявок.
// defaultScope подставляется, если QR-код не содержит scope.
func NewAccessRequestService(
	repo repository.AccessRequestRepository,
	codes *CodeGenerator,
	clock Clock,
	defaultScope string,
	publicBaseURL string,
	logger *slog.Logger,
) *AccessRequestService {
	return &AccessRequestService{
		repo:          repo,
		codes:         codes,
		clock:         clock,
		validate:      newInputValidator(),
		defaultScope:  defaultScope,
		publicBaseURL: publicBaseURL,
		logger:        logger.With(slog.String("component", "access_request_service")),
	}
}

// Record создаёт заявку или возвращает существующую с тем же кодом.
// Повторная регистрация не меняет scope и IP исходной заявки.
func (s *AccessRequestService) Record(ctx context.Context, in RecordInput) (*model.AccessRequest, bool, error) {
	if in.ScopeID == "" {
		in.ScopeID = s.defaultScope
	}
	if err := validateStruct(s.validate, in); err != nil {
		return nil, false, err
	}
	in.OriginIP = truncateOrigin(in.OriginIP)

	req, created, err := s.repo.UpsertPending(ctx, model.NewAccessRequest{
		ID:        uuid.NewString(),
		Code:      in.Code,
		OriginIP:  in.OriginIP,
		ScopeID:   in.ScopeID,
		CreatedAt: truncateInstant(s.clock.Now()),
	})
	if err != nil {
		s.logger.Error("Ошибка регистрации заявки",
			slog.String("code", in.Code),
			slog.String("error", err.Error()),
		)
		return nil, false, storeUnavailable(err)
	}

	if created {
		accessRequestsRecorded.WithLabelValues("created").Inc()
		s.logger.Info("Заявка зарегистрирована",
			slog.String("request_id", req.ID),
			slog.String("code", req.Code),
			slog.String("scope_id", req.ScopeID),
			slog.String("origin_ip", req.OriginIP),
		)
	} else {
		accessRequestsRecorded.WithLabelValues("existing").Inc()
		if req.ScopeID != in.ScopeID {
			s.logger.Warn("Повторная регистрация кода с другим scope, используется исходный",
				slog.String("code", req.Code),
				slog.String("scope_id", req.ScopeID),
				slog.String("requested_scope_id", in.ScopeID),
			)
		}
	}
	return req, created, nil
}

// maxOriginIPLen: ширина колонки origin_ip.
const maxOriginIPLen = 255

// truncateOrigin обрезает адрес до maxOriginIPLen байт по границе символа.
// Адрес справочный и не должен мешать регистрации заявки.
func truncateOrigin(ip string) string {
	if len(ip) <= maxOriginIPLen {
		return ip
	}
	cut := maxOriginIPLen
	for cut > 0 && !utf8.RuneStart(ip[cut]) {
		cut--
	}
	return ip[:cut]
}

// StatusOf читает актуальный статус заявки по коду, без кэширования.
func (s *AccessRequestService) StatusOf(ctx context.Context, code string) (*StatusView, error) {
	if !accessCodePattern.MatchString(code) {
		return nil, validationError("некорректный код заявки")
	}

	req, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeUnavailable(err)
	}

	view := &StatusView{Status: req.Status}
	if req.Status == model.StatusApproved {
		view.Token = req.Token
		view.ExpiresAt = req.TokenExpiresAt
	}
	return view, nil
}

// Get возвращает заявку по ID.
func (s *AccessRequestService) Get(ctx context.Context, id string) (*model.AccessRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeUnavailable(err)
	}
	return req, nil
}

// ListRecent возвращает последние заявки, новые первыми.
// limit 0 даёт 50, значения выше 500 урезаются.
func (s *AccessRequestService) ListRecent(ctx context.Context, limit int) ([]*model.AccessRequest, error) {
	if limit < 0 {
		return nil, validationError("limit не может быть отрицательным")
	}
	list, err := s.repo.ListRecent(ctx, repository.NormalizeLimit(limit))
	if err != nil {
		return nil, storeUnavailable(err)
	}
	return list, nil
}

// NewQRCode выпускает код для печати QR. Заявка появится только после сканирования.
func (s *AccessRequestService) NewQRCode(scopeID string) (*QRCode, error) {
	if scopeID == "" {
		scopeID = s.defaultScope
	}
	if !scopeIDPattern.MatchString(scopeID) {
		return nil, validationError("некорректный scope_id")
	}
	code, err := s.codes.Generate(s.clock.Now())
	if err != nil {
		return nil, err
	}
	return &QRCode{
		Code:    code,
		ScopeID: scopeID,
		URL:     RequestAccessURL(s.publicBaseURL, code, scopeID),
	}, nil
}

// QRCodeFor собирает payload для уже выпущенного кода, например для повторной печати.
func (s *AccessRequestService) QRCodeFor(code, scopeID string) (*QRCode, error) {
	if scopeID == "" {
		scopeID = s.defaultScope
	}
	if !accessCodePattern.MatchString(code) {
		return nil, validationError("некорректный код заявки")
	}
	if !scopeIDPattern.MatchString(scopeID) {
		return nil, validationError("некорректный scope_id")
	}
	return &QRCode{
		Code:    code,
		ScopeID: scopeID,
		URL:     RequestAccessURL(s.publicBaseURL, code, scopeID),
	}, nil
}
