// Package echo provides Echo middleware that authenticates signed
// wallet-API style requests before they reach handlers.
package echo

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thirdfy/agentkit/custodial"
)

// ContextKeyVerifiedBody is the echo context key under which the verified,
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
// authentication headers do not verify. On failure the request is answered
// with 401 and a JSON error; on success the parsed body is stored under
// ContextKeyVerifiedBody and the original body remains readable.
func SignatureVerification(config Config) (echo.MiddlewareFunc, error) {
	verifier, err := custodial.NewRequestVerifier(config.AppID, config.AppSecret, config.VerificationKeys...)
	if err != nil {
		return nil, err
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			body, err := io.ReadAll(req.Body)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{
					"error": "failed to read request body",
				})
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			url := custodial.RequestURL(req, config.BaseURL)
			parsed, err := verifier.VerifyRequest(req.Method, url, body, req.Header)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": err.Error(),
				})
			}

			c.Set(ContextKeyVerifiedBody, parsed)
			return next(c)
		}
	}, nil
}
