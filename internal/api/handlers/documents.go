// documents.go: чтение реестра документов и выдача содержимого по токену доступа.
package handlers

import (
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/woredasystem/woreda1inspection/internal/api/errors"
	"github.com/woredasystem/woreda1inspection/internal/domain/model"
)

// AccessTokenHeader: заголовок с токеном доступа посетителя.
const AccessTokenHeader = "X-Access-Token"

type documentResponse struct {
	ID              string  `json:"id"`
	ScopeID         string  `json:"scope_id"`
	CategoryID      string  `json:"category_id"`
	SubcategoryCode *string `json:"subcategory_code,omitempty"`
	Year            int     `json:"year"`
	FileName        string  `json:"file_name"`
	ContentType     string  `json:"content_type"`
	CreatedAt       string  `json:"created_at"`
}

type documentListResponse struct {
	Items     []documentResponse `json:"items"`
	ScopeID   string             `json:"scope_id"`
	ExpiresAt string             `json:"expires_at"`
}

func toDocumentResponse(d *model.Document) documentResponse {
	resp := documentResponse{
		ID:          d.ID,
		ScopeID:     d.ScopeID,
		CategoryID:  d.CategoryID,
		Year:        d.Year,
		FileName:    d.FileName,
		ContentType: d.ContentType,
		CreatedAt:   formatTime(d.CreatedAt),
	}
	if d.SubcategoryCode != "" {
		code := d.SubcategoryCode
		resp.SubcategoryCode = &code
	}
	return resp
}

// accessToken: заголовок X-Access-Token, иначе параметр token.
// Параметр нужен для ссылок, открываемых браузером напрямую.
func accessToken(r *http.Request) string {
	if t := r.Header.Get(AccessTokenHeader); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}

// ListDocuments: GET /api/v1/documents.
func (h *APIHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	var (
		category      *string
		year          *int
		limit, offset *int
	)
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "category", query, &category); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр category")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "year", query, &year); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр year")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр limit")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", query, &offset); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр offset")
		return
	}

	filter := model.DocumentFilter{CategoryID: category, Year: year}
	if limit != nil {
		filter.Limit = *limit
	}
	if offset != nil {
		filter.Offset = *offset
	}

	docs, grant, err := h.documents.List(r.Context(), accessToken(r), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, toDocumentResponse(d))
	}
	w.Header().Set("Cache-Control", "private, no-store")
	writeJSON(w, http.StatusOK, documentListResponse{
		Items:     items,
		ScopeID:   grant.ScopeID,
		ExpiresAt: formatTime(grant.ExpiresAt),
	})
}

// GetDocument: GET /api/v1/documents/{id}.
func (h *APIHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := bindIDPath(w, r)
	if !ok {
		return
	}

	doc, err := h.documents.Get(r.Context(), accessToken(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, no-store")
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// GetDocumentContent: GET /api/v1/documents/{id}/content.
// Содержимое потоково передаётся из объектного хранилища, Range пробрасывается.
func (h *APIHandler) GetDocumentContent(w http.ResponseWriter, r *http.Request) {
	id, ok := bindIDPath(w, r)
	if !ok {
		return
	}

	doc, obj, err := h.documents.OpenContent(r.Context(), accessToken(r), id, r.Header.Get("Range"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer obj.Body.Close()

	for name, values := range obj.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	if w.Header().Get("Content-Type") == "" && doc.ContentType != "" {
		w.Header().Set("Content-Type", doc.ContentType)
	}
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("inline", map[string]string{"filename": doc.FileName}))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(obj.StatusCode)

	if _, err := io.Copy(w, obj.Body); err != nil {
		// Заголовки уже отправлены, остаётся только залогировать обрыв.
		h.logger.Warn("Передача содержимого документа прервана",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()),
		)
	}
}

// bindIDPath разбирает {id} как UUID. При ошибке ответ 400 уже записан.
func bindIDPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		apierrors.ValidationError(w, "Некорректный параметр id: ожидается UUID")
		return "", false
	}
	return id.String(), true
}
