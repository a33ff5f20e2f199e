package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/repository"
)

func TestValidate_Rejections(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(0)

	approvedReq := l.record(t, "WRD-1700000000-APPR01", "woreda-1")
	approved, err := l.approval.Approve(ctx, approvedReq.ID, "admin")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	forged := approved.Token[:42] + flipLast(approved.Token[42])

	tests := []struct {
		name  string
		token string
		now   time.Time
	}{
		{"пустой токен", "", testNow},
		{"неверный формат", "not a token", testNow},
		{"подделанный токен", forged, testNow},
		{"неизвестный токен", strings.Repeat("Q", 43), testNow},
		{"ровно в момент истечения", approved.Token, approved.ExpiresAt},
		{"после истечения", approved.Token, approved.ExpiresAt.Add(time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grant, err := l.validator.Validate(ctx, tt.token, tt.now)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ошибка = %v, ожидалась ErrInvalidToken", err)
			}
			if grant != nil {
				t.Errorf("grant = %+v, ожидался nil", grant)
			}
		})
	}
}

func flipLast(c byte) string {
	if c == 'A' {
		return "B"
	}
	return "A"
}

func TestValidate_NotApproved(t *testing.T) {
	token := strings.Repeat("t", 43)
	for _, status := range []model.Status{model.StatusPending, model.StatusDenied} {
		t.Run(string(status), func(t *testing.T) {
			repo := &mockAccessRequestRepo{
				getByTokenFn: func(context.Context, string) (*model.AccessRequest, error) {
					return &model.AccessRequest{
						ID:             "77777777-7777-7777-7777-777777777777",
						Status:         status,
						ScopeID:        "woreda-1",
						Token:          strPtr(token),
						TokenExpiresAt: timePtr(testNow.Add(time.Hour)),
					}, nil
				},
			}
			v := NewAccessValidator(repo, 0, 0, testLogger())
			if _, err := v.Validate(context.Background(), token, testNow); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ошибка = %v, ожидалась ErrInvalidToken", err)
			}
		})
	}
}

func TestValidate_StoreFailure(t *testing.T) {
	repo := &mockAccessRequestRepo{
		getByTokenFn: func(context.Context, string) (*model.AccessRequest, error) {
			return nil, errors.New("too many connections")
		},
	}
	v := NewAccessValidator(repo, 0, 0, testLogger())

	_, err := v.Validate(context.Background(), strings.Repeat("t", 43), testNow)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("ошибка = %v, ожидалась ErrStoreUnavailable", err)
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Error("сбой хранилища не должен выглядеть как недействительный токен")
	}
}

func TestValidate_CachesOnlyPositive(t *testing.T) {
	token := strings.Repeat("c", 43)
	expires := testNow.Add(time.Hour)
	calls := 0
	approved := false
	repo := &mockAccessRequestRepo{
		getByTokenFn: func(context.Context, string) (*model.AccessRequest, error) {
			calls++
			if !approved {
				return nil, repository.ErrNotFound
			}
			return &model.AccessRequest{
				ID:             "88888888-8888-8888-8888-888888888888",
				Status:         model.StatusApproved,
				ScopeID:        "woreda-4",
				Token:          strPtr(token),
				TokenExpiresAt: timePtr(expires),
			}, nil
		},
	}
	v := NewAccessValidator(repo, 16, time.Minute, testLogger())
	ctx := context.Background()

	if _, err := v.Validate(ctx, token, testNow); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("первый вызов: %v", err)
	}

	approved = true
	grant, err := v.Validate(ctx, token, testNow)
	if err != nil {
		t.Fatalf("отрицательный результат закэширован: %v", err)
	}
	if grant.ScopeID != "woreda-4" {
		t.Errorf("ScopeID = %q", grant.ScopeID)
	}

	if _, err := v.Validate(ctx, token, testNow.Add(time.Second)); err != nil {
		t.Fatalf("вызов из кэша: %v", err)
	}
	if calls != 2 {
		t.Errorf("обращений к хранилищу = %d, ожидалось 2", calls)
	}

	// срок проверяется и для записи из кэша
	if _, err := v.Validate(ctx, token, expires); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("кэш пропустил истёкший токен: %v", err)
	}
}
