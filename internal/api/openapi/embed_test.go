package openapi

import (
	"context"
	"testing"
)

func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, path := range []string{
		"/api/v1/access-requests",
		"/api/v1/access-requests/status",
		"/api/v1/tokens/validate",
		"/api/v1/documents/{id}/content",
		"/api/v1/admin/access-requests/{id}/approve",
		"/api/v1/admin/qr-codes/{code}/png",
	} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("путь %s отсутствует в контракте", path)
		}
	}

	if len(Raw()) == 0 {
		t.Error("Raw() пуст")
	}
}
