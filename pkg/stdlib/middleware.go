// Package stdlib provides net/http middleware that authenticates signed
// wallet-API style requests before they reach handlers.
package stdlib

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/thirdfy/agentkit/custodial"
)

type contextKey struct{}

// verifiedBodyKey is the request context key under which the verified,
// parsed request body is stored.
var verifiedBodyKey contextKey

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
// with 401 and a JSON error; on success the parsed body is stored in the
// request context (see VerifiedBody) and the original body remains readable.
func SignatureVerification(config Config) (func(http.Handler) http.Handler, error) {
	verifier, err := custodial.NewRequestVerifier(config.AppID, config.AppSecret, config.VerificationKeys...)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeErrorResponse(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			url := custodial.RequestURL(r, config.BaseURL)
			parsed, err := verifier.VerifyRequest(r.Method, url, body, r.Header)
			if err != nil {
				writeErrorResponse(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), verifiedBodyKey, parsed)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

// VerifiedBody returns the parsed request body stored by the middleware, or
// nil when the request did not pass through it.
func VerifiedBody(ctx context.Context) interface{} {
	return ctx.Value(verifiedBodyKey)
}

// writeErrorResponse writes an error response with the given status code and message.
func writeErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": errorMsg,
	})
}
