package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
)

// defaultTestTTL: окно действия токена по умолчанию.
const defaultTestTTL = 2 * time.Hour

// testNow: 2023-11-14T22:13:20Z, момент из кода WRD-1700000000-AB12CD.
var testNow = time.Unix(1700000000, 0).UTC()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock: управляемые часы для тестов.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockAccessRequestRepo: мок repository.AccessRequestRepository на fn-полях.
type mockAccessRequestRepo struct {
	upsertPendingFn       func(ctx context.Context, in model.NewAccessRequest) (*model.AccessRequest, bool, error)
	getByCodeFn           func(ctx context.Context, code string) (*model.AccessRequest, error)
	getByIDFn             func(ctx context.Context, id string) (*model.AccessRequest, error)
	getByTokenFn          func(ctx context.Context, token string) (*model.AccessRequest, error)
	compareAndSetStatusFn func(ctx context.Context, tr model.Transition) error
	listRecentFn          func(ctx context.Context, limit int) ([]*model.AccessRequest, error)
}

func (m *mockAccessRequestRepo) UpsertPending(ctx context.Context, in model.NewAccessRequest) (*model.AccessRequest, bool, error) {
	return m.upsertPendingFn(ctx, in)
}

func (m *mockAccessRequestRepo) GetByCode(ctx context.Context, code string) (*model.AccessRequest, error) {
	return m.getByCodeFn(ctx, code)
}

func (m *mockAccessRequestRepo) GetByID(ctx context.Context, id string) (*model.AccessRequest, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockAccessRequestRepo) GetByToken(ctx context.Context, token string) (*model.AccessRequest, error) {
	return m.getByTokenFn(ctx, token)
}

func (m *mockAccessRequestRepo) CompareAndSetStatus(ctx context.Context, tr model.Transition) error {
	return m.compareAndSetStatusFn(ctx, tr)
}

func (m *mockAccessRequestRepo) ListRecent(ctx context.Context, limit int) ([]*model.AccessRequest, error) {
	return m.listRecentFn(ctx, limit)
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
