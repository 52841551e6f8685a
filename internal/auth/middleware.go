package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kamar-Folarin/brand-sync/internal/models"
)

const ownerKey = "auth.owner"

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's identity on the context
func Middleware(v *Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := v.Validate(BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or missing bearer token",
				"type":  "UNAUTHORIZED",
			})
			return
		}
		c.Set(ownerKey, claims.Owner())
		c.Next()
	}
}

// OwnerFrom returns the authenticated caller set by Middleware
func OwnerFrom(c *gin.Context) (models.Owner, bool) {
	v, ok := c.Get(ownerKey)
	if !ok {
		return models.Owner{}, false
	}
	owner, ok := v.(models.Owner)
	return owner, ok
}

// WithOwner stores owner on the context. Used by tests.
func WithOwner(c *gin.Context, owner models.Owner) {
	c.Set(ownerKey, owner)
}
