package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-portal-api/internal/models"
)

// Claims returns the JWT claims stored by JWT or OptionalJWT.
func Claims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// Session builds the caller context services expect. Anonymous requests get nil.
func Session(c *gin.Context) *models.Session {
	claims := Claims(c)
	if claims == nil {
		return nil
	}
	return &models.Session{
		UserID:    claims.UserID,
		Role:      claims.Role,
		FullName:  claims.FullName,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
