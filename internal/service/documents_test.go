package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/objectclient"
	"github.com/woredasystem/woreda1inspection/internal/repository/memory"
)

type mockObjectOpener struct {
	openFn func(ctx context.Context, objectKey, rangeHeader string) (*objectclient.Object, error)
}

func (m *mockObjectOpener) Open(ctx context.Context, objectKey, rangeHeader string) (*objectclient.Object, error) {
	return m.openFn(ctx, objectKey, rangeHeader)
}

const (
	docInScope    = "aaaaaaaa-0000-0000-0000-000000000001"
	docOtherScope = "aaaaaaaa-0000-0000-0000-000000000002"
)

// newDocumentFixture: одобренная заявка на woreda-9 и по документу в woreda-9 и woreda-3.
func newDocumentFixture(t *testing.T, objects ObjectOpener) (*DocumentService, *lifecycle, string) {
	t.Helper()
	ctx := context.Background()
	l := newLifecycle(0)

	docs := memory.NewDocumentStore()
	for _, d := range []*model.Document{
		{ID: docInScope, ScopeID: "woreda-9", CategoryID: "land", Year: 2016, FileName: "a.pdf", ObjectKey: "woreda-9/land/a.pdf", ContentType: "application/pdf", CreatedAt: testNow},
		{ID: docOtherScope, ScopeID: "woreda-3", CategoryID: "land", Year: 2016, FileName: "b.pdf", ObjectKey: "woreda-3/land/b.pdf", ContentType: "application/pdf", CreatedAt: testNow},
	} {
		if err := docs.Create(ctx, d); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	req := l.record(t, "WRD-1700000000-DOC001", "woreda-9")
	decision, err := l.approval.Approve(ctx, req.ID, "admin")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return NewDocumentService(docs, l.validator, objects, l.clock, testLogger()), l, decision.Token
}

func TestDocuments_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	svc, _, token := newDocumentFixture(t, nil)

	list, grant, err := svc.List(ctx, token, model.DocumentFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if grant.ScopeID != "woreda-9" {
		t.Errorf("ScopeID = %q", grant.ScopeID)
	}
	if len(list) != 1 || list[0].ID != docInScope {
		t.Fatalf("List = %+v, ожидался один документ woreda-9", list)
	}

	if _, err := svc.Get(ctx, token, docInScope); err != nil {
		t.Errorf("Get своего документа: %v", err)
	}
	if _, err := svc.Get(ctx, token, docOtherScope); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get чужого документа: %v, ожидалась ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, token, "bad-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get с некорректным ID: %v", err)
	}
}

func TestDocuments_InvalidToken(t *testing.T) {
	ctx := context.Background()
	svc, l, token := newDocumentFixture(t, nil)

	if _, _, err := svc.List(ctx, strings.Repeat("x", 43), model.DocumentFilter{}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("List с неизвестным токеном: %v", err)
	}

	l.clock.Advance(defaultTestTTL)
	if _, err := svc.Get(ctx, token, docInScope); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Get с истёкшим токеном: %v", err)
	}
}

func TestDocuments_ListFilter(t *testing.T) {
	ctx := context.Background()
	svc, _, token := newDocumentFixture(t, nil)

	year := 2017
	list, _, err := svc.List(ctx, token, model.DocumentFilter{Year: &year})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len = %d, ожидалось 0", len(list))
	}

	if _, _, err := svc.List(ctx, token, model.DocumentFilter{Offset: -1}); !errors.Is(err, ErrValidation) {
		t.Errorf("отрицательный offset: %v", err)
	}
}

func TestDocuments_OpenContent(t *testing.T) {
	ctx := context.Background()
	var gotKey, gotRange string
	objects := &mockObjectOpener{
		openFn: func(_ context.Context, key, rng string) (*objectclient.Object, error) {
			gotKey, gotRange = key, rng
			return &objectclient.Object{
				Body:       io.NopCloser(strings.NewReader("%PDF")),
				StatusCode: http.StatusPartialContent,
				Header:     http.Header{"Content-Type": []string{"application/pdf"}},
			}, nil
		},
	}
	svc, _, token := newDocumentFixture(t, objects)

	doc, obj, err := svc.OpenContent(ctx, token, docInScope, "bytes=0-3")
	if err != nil {
		t.Fatalf("OpenContent: %v", err)
	}
	defer obj.Body.Close()
	if doc.ID != docInScope {
		t.Errorf("doc.ID = %q", doc.ID)
	}
	if gotKey != "woreda-9/land/a.pdf" || gotRange != "bytes=0-3" {
		t.Errorf("Open(%q, %q)", gotKey, gotRange)
	}

	if _, _, err := svc.OpenContent(ctx, token, docOtherScope, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("чужой документ: %v", err)
	}
}

func TestDocuments_OpenContentErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		objects ObjectOpener
		want    error
	}{
		{"хранилище не настроено", nil, ErrObjectStoreUnavailable},
		{"объект отсутствует", &mockObjectOpener{openFn: func(context.Context, string, string) (*objectclient.Object, error) {
			return nil, objectclient.ErrObjectNotFound
		}}, ErrNotFound},
		{"хранилище недоступно", &mockObjectOpener{openFn: func(context.Context, string, string) (*objectclient.Object, error) {
			return nil, objectclient.ErrUnavailable
		}}, ErrObjectStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, token := newDocumentFixture(t, tt.objects)
			if _, _, err := svc.OpenContent(ctx, token, docInScope, ""); !errors.Is(err, tt.want) {
				t.Errorf("ошибка = %v, ожидалась %v", err, tt.want)
			}
		})
	}
}
