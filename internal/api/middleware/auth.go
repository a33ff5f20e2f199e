// auth.go: JWT middleware для администраторов шлюза.
// Подпись проверяется по JWKS Keycloak, роль вычисляется из групп
// (с откатом на realm_access.roles) и кладётся в контекст запроса.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/woredasystem/woreda1inspection/internal/api/errors"
	"github.com/woredasystem/woreda1inspection/internal/domain/rbac"
)

type contextKey string

// ContextKeyClaims: ключ AuthClaims в контексте запроса.
const ContextKeyClaims contextKey = "jwt_claims"

// AuthClaims: claims администратора, извлечённые из Keycloak JWT.
type AuthClaims struct {
	Subject           string
	PreferredUsername string
	Email             string
	Groups            []string
	Roles             []string
	// Role: итоговая роль шлюза (viewer, approver или пусто).
	Role string
}

// Actor возвращает имя для журнала решений: preferred_username, иначе sub.
func (c *AuthClaims) Actor() string {
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Subject
}

type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string       `json:"preferred_username"`
	Email             string       `json:"email"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
	Groups            []string     `json:"groups,omitempty"`
}

type realmAccess struct {
	Roles []string `json:"roles"`
}

// JWTAuth проверяет Bearer token администратора.
type JWTAuth struct {
	keys   keyfunc.Keyfunc
	parser *jwt.Parser
	groups groupMapping
	logger *slog.Logger
}

// groupMapping: группы Keycloak, дающие роли шлюза.
type groupMapping struct {
	approver []string
	viewer   []string
}

// JWTAuthConfig: параметры JWKS и маппинга групп.
type JWTAuthConfig struct {
	JWKSURL             string
	CACertPath          string
	Issuer              string
	ApproverGroups      []string
	ViewerGroups        []string
	JWKSClientTimeout   time.Duration
	JWKSRefreshInterval time.Duration
	JWTLeeway           time.Duration
}

// NewJWTAuth загружает JWKS в фоне: первый неудачный запрос к Keycloak
// не мешает старту, ключи подтянутся при следующем обновлении.
func NewJWTAuth(cfg JWTAuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	client, err := keycloakHTTPClient(cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		return nil, err
	}

	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    client,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.JWKSRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("JWKS не обновлён",
				slog.String("url", cfg.JWKSURL),
				slog.String("error", err.Error()),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("JWKS storage %s: %w", cfg.JWKSURL, err)
	}

	kf, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("keyfunc: %w", err)
	}

	auth := newJWTAuth(kf, cfg.Issuer, cfg.JWTLeeway, groupMapping{
		approver: cfg.ApproverGroups,
		viewer:   cfg.ViewerGroups,
	}, logger)
	return auth, nil
}

// NewJWTAuthWithKeyfunc создаёт middleware с готовой keyfunc, без JWKS по сети.
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	approverGroups, viewerGroups []string,
	logger *slog.Logger,
) *JWTAuth {
	return newJWTAuth(kf, issuer, 0, groupMapping{approver: approverGroups, viewer: viewerGroups}, logger)
}

func newJWTAuth(kf keyfunc.Keyfunc, issuer string, leeway time.Duration, groups groupMapping, logger *slog.Logger) *JWTAuth {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTAuth{
		keys:   kf,
		parser: jwt.NewParser(opts...),
		groups: groups,
		logger: logger.With(slog.String("component", "jwt_auth")),
	}
}

// bearerToken достаёт токен из Authorization или возвращает причину отказа.
func bearerToken(r *http.Request) (token, reason string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "Требуется заголовок Authorization"
	}
	scheme, token, ok := strings.Cut(header, " ")
	switch {
	case !ok || !strings.EqualFold(scheme, "Bearer"):
		return "", "Ожидается схема Bearer"
	case strings.TrimSpace(token) == "":
		return "", "Пустой Bearer token"
	}
	return strings.TrimSpace(token), ""
}

// Middleware кладёт AuthClaims в контекст или отвечает 401.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, reason := bearerToken(r)
			if reason != "" {
				apierrors.Unauthorized(w, reason)
				return
			}

			var kc keycloakClaims
			if _, err := j.parser.ParseWithClaims(raw, &kc, j.keys.KeyfuncCtx(r.Context())); err != nil {
				j.logger.Debug("Токен администратора отклонён",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Токен невалиден или просрочен")
				return
			}
			if kc.Subject == "" {
				apierrors.Unauthorized(w, "В токене нет sub")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, j.groups.claims(&kc))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// claims: роль берётся из групп, при их отсутствии из realm_access.roles.
func (g groupMapping) claims(kc *keycloakClaims) *AuthClaims {
	c := &AuthClaims{
		Subject:           kc.Subject,
		PreferredUsername: kc.PreferredUsername,
		Email:             kc.Email,
		Groups:            kc.Groups,
	}
	if kc.RealmAccess != nil {
		c.Roles = kc.RealmAccess.Roles
	}

	if c.Role = rbac.MapGroupsToRole(c.Groups, g.approver, g.viewer); c.Role != "" {
		return c
	}
	known := make([]string, 0, len(c.Roles))
	for _, role := range c.Roles {
		if rbac.IsValidRole(role) {
			known = append(known, role)
		}
	}
	c.Role = rbac.HighestRole(known)
	return c
}

// RequireRole пропускает администраторов с ролью не ниже required.
// Используется после JWTAuth.Middleware().
func RequireRole(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
				return
			}
			if !rbac.Satisfies(claims.Role, required) {
				apierrors.Forbidden(w, "Недостаточно прав: требуется роль "+required)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext возвращает AuthClaims или nil.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// ActorFromContext возвращает имя администратора для журнала решений.
func ActorFromContext(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.Actor()
}
