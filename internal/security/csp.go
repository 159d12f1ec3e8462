package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

const nonceKey = "csp-nonce"

// API responses are data, not documents: disallow everything.
const apiPolicy = "default-src 'none'; frame-ancestors 'none'; base-uri 'self'"

// GenerateNonce generates a cryptographically secure random nonce
func GenerateNonce() (string, error) {
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonceBytes), nil
}

// CSPMiddleware sets a Content-Security-Policy on every response. The
// swagger UI is the only HTML this service serves; it gets a nonce-based
// policy, everything else gets the locked-down API policy.
func CSPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		policy := apiPolicy

		if strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
			nonce, err := GenerateNonce()
			if err != nil {
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
				return
			}
			c.Set(nonceKey, nonce)
			policy = swaggerPolicy(nonce)
		}

		c.Header("Content-Security-Policy", policy)

		if os.Getenv("ENABLE_CSP_REPORT") == "true" {
			reportURI := os.Getenv("CSP_REPORT_URI")
			if reportURI != "" {
				c.Header("Content-Security-Policy-Report-Only", policy+"; report-uri "+reportURI)
			}
		}

		c.Next()
	}
}

// GetNonce retrieves the nonce from the Gin context
func GetNonce(c *gin.Context) string {
	if nonce, exists := c.Get(nonceKey); exists {
		if nonceStr, ok := nonce.(string); ok {
			return nonceStr
		}
	}
	return ""
}

// swaggerPolicy allows the swagger UI's own assets plus nonce-tagged
// inline scripts. Styles stay 'unsafe-inline': the UI injects them at
// runtime without nonces.
func swaggerPolicy(nonce string) string {
	return fmt.Sprintf(
		"default-src 'self'; "+
			"script-src 'self' 'nonce-%s' 'unsafe-inline'; "+
			"style-src 'self' 'unsafe-inline'; "+
			"img-src 'self' data:; "+
			"font-src 'self' data:; "+
			"connect-src 'self'; "+
			"frame-ancestors 'none'; "+
			"base-uri 'self'; "+
			"form-action 'self'",
		nonce,
	)
}
