package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	pkgjwt "github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/jwt"
	pkglog "github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/log"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/response"
)

const (
	UserIDKey        = "user_id"
	EmailKey         = "email"
	UsernameKey      = "username"
	RoleKey          = "role"
	AuthHeaderKey    = "Authorization"
	BearerPrefix     = "Bearer "
	DefaultCookieKey = "access-token"
)

// ErrUnauthorized is returned when a credential cannot be resolved.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the caller resolved from an access token.
type Identity struct {
	UserID       int64
	Role         string
	Username     string
	EmailAddress string
}

// Resolver turns a credential into an identity.
type Resolver interface {
	Resolve(credential string) (*Identity, error)
}

// JWTResolver resolves identities by verifying access tokens locally.
type JWTResolver struct {
	verifier *pkgjwt.Verifier
}

// NewJWTResolver creates a resolver backed by verifier.
func NewJWTResolver(verifier *pkgjwt.Verifier) *JWTResolver {
	return &JWTResolver{verifier: verifier}
}

// Resolve implements Resolver.
func (r *JWTResolver) Resolve(credential string) (*Identity, error) {
	claims, err := r.verifier.ValidateToken(credential)
	if err != nil {
		return nil, errors.Join(ErrUnauthorized, err)
	}
	return &Identity{
		UserID:       claims.UserID,
		Role:         claims.UserRole,
		Username:     claims.Username,
		EmailAddress: claims.EmailAddress,
	}, nil
}

// AuthMiddleware resolves the caller from the access-token cookie or an
// Authorization bearer header.
type AuthMiddleware struct {
	resolver   Resolver
	cookieName string
}

// NewAuthMiddleware creates a new auth middleware. An empty cookieName
// falls back to DefaultCookieKey.
func NewAuthMiddleware(resolver Resolver, cookieName string) *AuthMiddleware {
	if cookieName == "" {
		cookieName = DefaultCookieKey
	}
	return &AuthMiddleware{resolver: resolver, cookieName: cookieName}
}

// RequireAuth returns a Gin middleware that rejects unresolvable callers.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := m.credential(c)
		if credential == "" {
			response.Unauthorized(c, "missing access token")
			c.Abort()
			return
		}

		identity, err := m.resolver.Resolve(credential)
		if err != nil {
			l := pkglog.Ctx(c.Request.Context())
			l.Debug().Err(err).Msg("access token rejected")
			response.Unauthorized(c, "invalid access token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, identity.UserID)
		c.Set(EmailKey, identity.EmailAddress)
		c.Set(UsernameKey, identity.Username)
		c.Set(RoleKey, identity.Role)

		// Enrich the request logger with the resolved actor.
		child := pkglog.Ctx(c.Request.Context()).With().
			Int64(pkglog.FieldUserID, identity.UserID).
			Str(pkglog.FieldUsername, identity.Username).
			Logger()
		c.Request = c.Request.WithContext(pkglog.WithLogger(c.Request.Context(), child))

		c.Next()
	}
}

func (m *AuthMiddleware) credential(c *gin.Context) string {
	if token, err := c.Cookie(m.cookieName); err == nil && token != "" {
		return token
	}
	authHeader := c.GetHeader(AuthHeaderKey)
	if strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	}
	return ""
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) (int64, bool) {
	if id, exists := c.Get(UserIDKey); exists {
		v, ok := id.(int64)
		return v, ok
	}
	return 0, false
}
