// Package gin provides Gin middleware that authenticates signed wallet-API
// style requests before they reach handlers.
package gin

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thirdfy/agentkit/custodial"
)

// ContextKeyVerifiedBody is the gin context key under which the verified,
// parsed request body is stored
const ContextKeyVerifiedBody = "verifiedBody"

// Config configures the signature verification middleware
type Config struct {
	// AppID and AppSecret are the application credentials callers must
	// present via basic auth (required)
	AppID     string
	AppSecret string

	// VerificationKeys are base64 DER (PKIX) P-256 public keys. A request
	// is accepted when any presented signature verifies under any key
	// (required, at least one).
	VerificationKeys []string

	// BaseURL is the externally visible base URL clients sign against
	// (optional; derived from the request when empty)
	BaseURL string
}

// SignatureVerification returns middleware that rejects requests whose
// authentication headers do not verify. On failure the request aborts with
// 401 and a JSON error; on success the parsed body is stored under
// ContextKeyVerifiedBody and the original body remains readable.
func SignatureVerification(config Config) (gin.HandlerFunc, error) {
	verifier, err := custodial.NewRequestVerifier(config.AppID, config.AppSecret, config.VerificationKeys...)
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "failed to read request body",
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		url := custodial.RequestURL(c.Request, config.BaseURL)
		parsed, err := verifier.VerifyRequest(c.Request.Method, url, body, c.Request.Header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
			})
			return
		}

		c.Set(ContextKeyVerifiedBody, parsed)
		c.Next()
	}, nil
}
