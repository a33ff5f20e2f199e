// Пакет server: HTTP-сервер шлюза доступа с graceful shutdown.
// Без TLS: HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/woredasystem/woreda1inspection/internal/api/errors"
	"github.com/woredasystem/woreda1inspection/internal/api/handlers"
	"github.com/woredasystem/woreda1inspection/internal/api/middleware"
	"github.com/woredasystem/woreda1inspection/internal/api/openapi"
	"github.com/woredasystem/woreda1inspection/internal/config"
	"github.com/woredasystem/woreda1inspection/internal/domain/rbac"
)

// Server: HTTP-сервер шлюза доступа.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с маршрутами и middleware.
// jwtAuth может быть nil: тогда административный API всегда отвечает 401.
// validator может быть nil: тогда запросы не сверяются с контрактом.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler *handlers.APIHandler,
	jwtAuth *middleware.JWTAuth,
	validator *middleware.RequestValidator,
) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, handler, jwtAuth, validator),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты шлюза.
//
// Публичные: страница посетителя, заявки, проверка токена, документы.
// Административные (/api/v1/admin): JWT, затем проверка контракта, затем роль.
func NewRouter(
	logger *slog.Logger,
	handler *handlers.APIHandler,
	jwtAuth *middleware.JWTAuth,
	validator *middleware.RequestValidator,
) http.Handler {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(chimw.Recoverer)

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Маршрут не найден")
	})

	// Health и metrics опрашиваются Kubernetes и Prometheus напрямую.
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	router.Get("/request-access", handler.RequestAccessPage)

	contract := func(next http.Handler) http.Handler { return next }
	if validator != nil {
		contract = validator.Middleware()
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(openapi.Raw())
		})

		r.Group(func(r chi.Router) {
			r.Use(contract)
			r.Post("/access-requests", handler.RecordAccessRequest)
			r.Get("/access-requests/status", handler.GetAccessRequestStatus)
			r.Post("/tokens/validate", handler.ValidateToken)
			r.Get("/documents", handler.ListDocuments)
			r.Get("/documents/{id}", handler.GetDocument)
			r.Get("/documents/{id}/content", handler.GetDocumentContent)
		})

		r.Route("/admin", func(r chi.Router) {
			if jwtAuth != nil {
				r.Use(jwtAuth.Middleware())
			}
			r.Use(contract)

			viewer := middleware.RequireRole(rbac.RoleViewer)
			approver := middleware.RequireRole(rbac.RoleApprover)

			r.With(viewer).Get("/access-requests", handler.ListAccessRequests)
			r.With(viewer).Get("/access-requests/{id}", handler.GetAccessRequest)
			r.With(approver).Post("/access-requests/{id}/approve", handler.ApproveAccessRequest)
			r.With(approver).Post("/access-requests/{id}/deny", handler.DenyAccessRequest)
			r.With(approver).Post("/qr-codes", handler.CreateQRCode)
			r.With(approver).Get("/qr-codes/{code}/png", handler.RenderQRCode)
		})
	})

	return router
}

// Run запускает сервер и ожидает SIGINT или SIGTERM, затем выполняет graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
