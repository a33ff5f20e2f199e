// Пакет objectclient: HTTP-клиент для потоковой выдачи документов
// из объектного хранилища (публичный base URL + object_key).
// Поддерживает TLS с кастомным CA и проброс заголовка Range.
package objectclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Ошибки клиента объектного хранилища.
var (
	// ErrObjectNotFound: хранилище ответило 404.
	ErrObjectNotFound = errors.New("объект не найден")
	// ErrUnavailable: хранилище недоступно или ответило ошибкой.
	ErrUnavailable = errors.New("объектное хранилище недоступно")
)

// passthroughHeaders: заголовки ответа хранилища, отдаваемые клиенту.
var passthroughHeaders = []string{
	"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges", "ETag", "Last-Modified",
}

// Object: открытый поток объекта. Вызывающий ОБЯЗАН закрыть Body.
type Object struct {
	Body       io.ReadCloser
	StatusCode int
	Header     http.Header
}

// Client: HTTP-клиент объектного хранилища.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент. caCertPath: путь к CA (пустая строка: системный пул).
func New(baseURL, caCertPath string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("некорректный base URL объектного хранилища: %w", err)
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
	}
	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger.With(slog.String("component", "object_client")),
	}, nil
}

// Open начинает потоковую загрузку объекта по ключу.
// rangeHeader пробрасывается как есть (пустая строка: без Range).
func (c *Client) Open(ctx context.Context, objectKey, rangeHeader string) (*Object, error) {
	reqURL := c.objectURL(objectKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrObjectNotFound
	default:
		resp.Body.Close()
		c.logger.Warn("Объектное хранилище вернуло ошибку",
			slog.String("object_key", objectKey),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: статус %d", ErrUnavailable, resp.StatusCode)
	}

	header := make(http.Header, len(passthroughHeaders))
	for _, h := range passthroughHeaders {
		if v := resp.Header.Get(h); v != "" {
			header.Set(h, v)
		}
	}

	return &Object{Body: resp.Body, StatusCode: resp.StatusCode, Header: header}, nil
}

// objectURL экранирует каждый сегмент ключа, сохраняя разделители "/".
func (c *Client) objectURL(objectKey string) string {
	segments := strings.Split(strings.TrimLeft(objectKey, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(segments, "/")
}

func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{RootCAs: caCertPool}, nil
}
