package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/jobboard-api/pkg/auth"
	apperrors "github.com/jwalitptl/jobboard-api/pkg/errors"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

var (
	errMissingToken  = errors.New("missing authorization header")
	errInvalidHeader = errors.New("invalid authorization format")
)

// TokenParser verifies an access token and returns who it was issued to.
type TokenParser interface {
	Parse(token string) (auth.Identity, error)
}

type AuthMiddleware struct {
	tokens TokenParser
}

func NewAuthMiddleware(tokens TokenParser) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and stores the caller's identity
// in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			_ = c.Error(apperrors.Unauthorized(err))
			c.Abort()
			return
		}

		identity, err := m.tokens.Parse(token)
		if err != nil {
			_ = c.Error(apperrors.Unauthorized(err))
			c.Abort()
			return
		}

		SetIdentity(c, identity)
		c.Next()
	}
}

// RequireRole lets the request through only when the authenticated caller
// holds one of roles.
func (m *AuthMiddleware) RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			_ = c.Error(apperrors.Unauthorized(errMissingToken))
			c.Abort()
			return
		}

		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}

		_ = c.Error(apperrors.Forbidden("permission denied"))
		c.Abort()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errInvalidHeader
	}
	return parts[1], nil
}

func SetIdentity(c *gin.Context, identity auth.Identity) {
	c.Set(ContextUserID, identity.UserID)
	c.Set(ContextRole, identity.Role)
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	userID, ok := c.Get(ContextUserID)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := userID.(uuid.UUID)
	if !ok {
		return auth.Identity{}, false
	}
	role, _ := c.Get(ContextRole)
	r, _ := role.(auth.Role)
	return auth.Identity{UserID: id, Role: r}, true
}
