package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

// keycloakHTTPClient: клиент к Keycloak, при caCertPath доверяет ещё и
// корпоративному CA поверх системного пула.
func keycloakHTTPClient(caCertPath string, timeout time.Duration) (*http.Client, error) {
	if caCertPath == "" {
		return &http.Client{Timeout: timeout}, nil
	}
	pem, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("CA-сертификат Keycloak %s: %w", caCertPath, err)
	}
	roots, err := x509.SystemCertPool()
	if err != nil {
		roots = x509.NewCertPool()
	}
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA-сертификат Keycloak %s: нет PEM-блоков", caCertPath)
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: roots, MinVersion: tls.VersionTLS12},
		},
	}, nil
}

// KeycloakReadinessChecker запрашивает JWKS Keycloak для /health/ready.
// Недоступный Keycloak даёт degraded: публичная часть шлюза работает без него.
type KeycloakReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

func NewKeycloakReadinessChecker(jwksURL, caCertPath string, timeout time.Duration) (*KeycloakReadinessChecker, error) {
	client, err := keycloakHTTPClient(caCertPath, timeout)
	if err != nil {
		return nil, err
	}
	return &KeycloakReadinessChecker{jwksURL: jwksURL, client: client}, nil
}

func (k *KeycloakReadinessChecker) CheckReady() (status, message string) {
	n, err := k.countKeys(context.Background())
	switch {
	case err != nil:
		return "degraded", err.Error()
	case n == 0:
		return "degraded", "в JWKS нет ключей"
	}
	return "ok", "ключей в JWKS: " + strconv.Itoa(n)
}

func (k *KeycloakReadinessChecker) countKeys(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("запрос JWKS: %w", err)
	}
	resp, err := k.client.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		return 0, fmt.Errorf("JWKS недоступен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("JWKS ответил %d", resp.StatusCode)
	}
	var set struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return 0, fmt.Errorf("JWKS не разобран: %w", err)
	}
	return len(set.Keys), nil
}
