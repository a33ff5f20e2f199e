// qr.go: выпуск кодов заявок и печать QR-кодов.
package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/skip2/go-qrcode"

	apierrors "github.com/woredasystem/woreda1inspection/internal/api/errors"
)

// Размер PNG по умолчанию и допустимые границы, в пикселях.
const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

type createQRCodeBody struct {
	ScopeID string `json:"scope_id"`
}

type qrCodeResponse struct {
	Code    string `json:"code"`
	ScopeID string `json:"scope_id"`
	URL     string `json:"url"`
	PNGURL  string `json:"png_url"`
}

// CreateQRCode: POST /api/v1/admin/qr-codes.
// Заявка не создаётся: она появится при первом сканировании.
func (h *APIHandler) CreateQRCode(w http.ResponseWriter, r *http.Request) {
	var body createQRCodeBody
	if err := decodeJSON(r, &body); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	qr, err := h.requests.NewQRCode(body.ScopeID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("Выпущен код заявки",
		slog.String("code", qr.Code),
		slog.String("scope_id", qr.ScopeID),
		slog.String("issued_by", actorOrEmpty(r)),
	)

	q := url.Values{}
	q.Set("scope", qr.ScopeID)
	writeJSON(w, http.StatusCreated, qrCodeResponse{
		Code:    qr.Code,
		ScopeID: qr.ScopeID,
		URL:     qr.URL,
		PNGURL:  "/api/v1/admin/qr-codes/" + url.PathEscape(qr.Code) + "/png?" + q.Encode(),
	})
}

// RenderQRCode: GET /api/v1/admin/qr-codes/{code}/png?scope=&size=
func (h *APIHandler) RenderQRCode(w http.ResponseWriter, r *http.Request) {
	var code string
	err := runtime.BindStyledParameterWithOptions("simple", "code", chi.URLParam(r, "code"), &code,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		apierrors.ValidationError(w, "Некорректный параметр code")
		return
	}

	var (
		scope *string
		size  *int
	)
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "scope", query, &scope); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр scope")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "size", query, &size); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр size")
		return
	}

	px := defaultQRSize
	if size != nil {
		px = *size
	}
	if px < minQRSize || px > maxQRSize {
		apierrors.ValidationError(w, "Параметр size вне диапазона 64-1024")
		return
	}
	scopeID := ""
	if scope != nil {
		scopeID = *scope
	}

	qr, err := h.requests.QRCodeFor(code, scopeID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	png, err := qrcode.Encode(qr.URL, qrcode.Medium, px)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Content-Disposition", `inline; filename="`+qr.Code+`.png"`)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
