package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/logging"
	"github.com/mikepea/yatube/pkg/yatube/models"
	"gorm.io/gorm"
)

// ContextKeyUser is the key for the acting user in gin context
const ContextKeyUser = "user"

type actorKey struct{}

// WithActor returns a copy of ctx carrying the acting user
func WithActor(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, actorKey{}, user)
}

// ActorFrom returns the acting user stored in ctx, if any
func ActorFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(actorKey{}).(*models.User)
	return user, ok && user != nil
}

// CurrentUser returns the authenticated user of the request.
// The second value is false for anonymous requests.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// Authenticate resolves the bearer token, if any, into the acting user.
// Requests without an Authorization header continue anonymously; a header that
// is present but unusable is rejected.
func Authenticate(tokens *TokenManager, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			apierror.Respond(c, apierror.ErrInvalidToken)
			return
		}

		claims, err := tokens.Validate(parts[1], TokenTypeAccess)
		if err != nil {
			apierror.Respond(c, apierror.ErrInvalidToken)
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apierror.Respond(c, apierror.ErrInvalidToken)
				return
			}
			apierror.Respond(c, err)
			return
		}
		if !user.Active {
			apierror.Respond(c, apierror.ErrInvalidToken)
			return
		}

		c.Set(ContextKeyUser, &user)
		c.Set(logging.UserIDKey, user.ID)
		c.Request = c.Request.WithContext(WithActor(c.Request.Context(), &user))

		c.Next()
	}
}

// RequireAuth rejects anonymous requests
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			apierror.Respond(c, apierror.ErrAuthenticationRequired)
			return
		}
		c.Next()
	}
}
