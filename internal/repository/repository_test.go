package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/woredasystem/woreda1inspection/internal/config"
	"github.com/woredasystem/woreda1inspection/internal/database"
	"github.com/woredasystem/woreda1inspection/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("woreda_test"),
		postgres.WithUsername("woreda"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}
	portNum, _ := strconv.Atoi(port.Port())

	cfg := &config.Config{
		DBHost:     host,
		DBPort:     portNum,
		DBName:     "woreda_test",
		DBUser:     "woreda",
		DBPassword: "test-password",
		DBSSLMode:  "disable",
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newPending(code string) model.NewAccessRequest {
	return model.NewAccessRequest{
		ID:        uuid.NewString(),
		Code:      code,
		OriginIP:  "10.0.0.1",
		ScopeID:   "woreda-9",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestAccessRequestRepo_UpsertPendingIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAccessRequestRepository(pool)
	ctx := context.Background()

	first, created, err := repo.UpsertPending(ctx, newPending("WRD-1700000000-AB12CD"))
	if err != nil || !created {
		t.Fatalf("UpsertPending() = created %v, err %v", created, err)
	}
	if first.Status != model.StatusPending {
		t.Errorf("Status = %q, ожидался pending", first.Status)
	}

	again := newPending("WRD-1700000000-AB12CD")
	again.ScopeID = "woreda-other"
	second, created, err := repo.UpsertPending(ctx, again)
	if err != nil {
		t.Fatalf("повторный UpsertPending() вернул ошибку: %v", err)
	}
	if created {
		t.Error("повторный UpsertPending() создал новую запись")
	}
	if second.ID != first.ID || second.ScopeID != "woreda-9" {
		t.Errorf("получена другая заявка: %+v", second)
	}
}

func TestAccessRequestRepo_ConcurrentUpsert(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAccessRequestRepository(pool)
	ctx := context.Background()

	const n = 10
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _, err := repo.UpsertPending(ctx, newPending("WRD-RACE-1"))
			if err != nil {
				t.Errorf("UpsertPending() вернул ошибку: %v", err)
				return
			}
			ids[i] = req.ID
		}()
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("получены разные id для одного code: %v", ids)
		}
	}
}

func TestAccessRequestRepo_CompareAndSetStatus(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAccessRequestRepository(pool)
	ctx := context.Background()

	req, _, err := repo.UpsertPending(ctx, newPending("WRD-CAS-1"))
	if err != nil {
		t.Fatalf("UpsertPending() вернул ошибку: %v", err)
	}

	token := "tok-1"
	now := time.Now().UTC().Truncate(time.Millisecond)
	expires := now.Add(2 * time.Hour)
	tr := model.Transition{
		ID: req.ID, From: model.StatusPending, To: model.StatusApproved,
		Token: &token, TokenExpiresAt: &expires, DecidedAt: now, DecidedBy: "admin-1",
	}
	if err := repo.CompareAndSetStatus(ctx, tr); err != nil {
		t.Fatalf("CompareAndSetStatus() вернул ошибку: %v", err)
	}

	// Второй переход из pending проигрывает
	if err := repo.CompareAndSetStatus(ctx, tr); !errors.Is(err, ErrConflict) {
		t.Errorf("повторный CompareAndSetStatus() = %v, ожидался ErrConflict", err)
	}

	tr.ID = uuid.NewString()
	if err := repo.CompareAndSetStatus(ctx, tr); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompareAndSetStatus(неизвестный id) = %v, ожидался ErrNotFound", err)
	}

	got, err := repo.GetByToken(ctx, token)
	if err != nil {
		t.Fatalf("GetByToken() вернул ошибку: %v", err)
	}
	if got.ID != req.ID || got.Status != model.StatusApproved {
		t.Errorf("GetByToken() = %+v", got)
	}
	if got.TokenExpiresAt == nil || !got.TokenExpiresAt.Equal(expires) {
		t.Errorf("TokenExpiresAt = %v, ожидалось %v", got.TokenExpiresAt, expires)
	}
	if got.DecidedBy == nil || *got.DecidedBy != "admin-1" {
		t.Errorf("DecidedBy = %v, ожидался admin-1", got.DecidedBy)
	}

	if _, err := repo.GetByCode(ctx, "WRD-NONE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByCode(неизвестный) = %v, ожидался ErrNotFound", err)
	}
}

func TestAccessRequestRepo_ListRecent(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAccessRequestRepository(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, code := range []string{"WRD-L-1", "WRD-L-2", "WRD-L-3"} {
		in := newPending(code)
		in.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if _, _, err := repo.UpsertPending(ctx, in); err != nil {
			t.Fatalf("UpsertPending(%s) вернул ошибку: %v", code, err)
		}
	}

	list, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() вернул ошибку: %v", err)
	}
	if len(list) != 2 || list[0].Code != "WRD-L-3" || list[1].Code != "WRD-L-2" {
		t.Errorf("ListRecent(2) вернул неверный порядок: %v", codes(list))
	}
}

func TestDocumentRepo_ScopeIsolation(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewDocumentRepository(pool)
	ctx := context.Background()

	doc := &model.Document{
		ID: uuid.NewString(), ScopeID: "woreda-9", CategoryID: "land", Year: 2016,
		FileName: "plan.pdf", ObjectKey: "woreda-9/land/plan.pdf", ContentType: "application/pdf",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	if _, err := repo.GetInScope(ctx, "woreda-1", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetInScope(чужой scope) = %v, ожидался ErrNotFound", err)
	}
	got, err := repo.GetInScope(ctx, "woreda-9", doc.ID)
	if err != nil || got.FileName != "plan.pdf" {
		t.Errorf("GetInScope() = %+v, %v", got, err)
	}

	list, err := repo.ListByScope(ctx, "woreda-9", model.DocumentFilter{})
	if err != nil || len(list) != 1 {
		t.Errorf("ListByScope() = %d документов, err %v", len(list), err)
	}
}

func codes(list []*model.AccessRequest) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.Code)
	}
	return out
}
