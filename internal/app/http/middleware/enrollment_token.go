package middleware

import (
	"fmt"
	"net/http"
	"time"

	"enrollment-app/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// EnrollmentTokenMiddleware authorizes the unauthenticated enrollee flow:
// a short-lived HS256 token scoped to exactly one enrollment, carried as
// a query parameter in the link the enrollee receives. Claims:
// enrollment_id, tenant_id, exp.
func EnrollmentTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Enrollment token missing"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(config.JWT_SECRET), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired enrollment token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		enrollmentID, ok1 := claims["enrollment_id"].(float64)
		tenantID, ok2 := claims["tenant_id"].(float64)
		if !ok1 || !ok2 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Enrollment token incomplete"})
			c.Abort()
			return
		}

		c.Set("enrollment_id", uint(enrollmentID))
		c.Set("tenant_id", uint(tenantID))
		c.Next()
	}
}

// NewEnrollmentToken mints a token for one enrollment, valid for ttl.
// Used by the admin surface when (re)sending an enrollee their link.
func NewEnrollmentToken(enrollmentID, tenantID uint, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"enrollment_id": enrollmentID,
		"tenant_id":     tenantID,
		"exp":           time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWT_SECRET))
}
