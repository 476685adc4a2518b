package custodial

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/thirdfy/agentkit"
)

// RequestVerifier checks inbound requests signed the way RequestSigner
// signs outbound ones. The HTTP middleware packages share this logic across
// frameworks.
type RequestVerifier struct {
	appID     string
	appSecret string
	keys      []*ecdsa.PublicKey
}

// NewRequestVerifier creates a verifier for one application. Verification
// keys are base64 DER (PKIX) P-256 public keys; a request is accepted when
// any presented signature verifies under any configured key.
func NewRequestVerifier(appID, appSecret string, verificationKeys ...string) (*RequestVerifier, error) {
	if appID == "" || appSecret == "" {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			"app id and app secret are required", nil)
	}
	if len(verificationKeys) == 0 {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			"at least one verification key is required", nil)
	}

	keys := make([]*ecdsa.PublicKey, 0, len(verificationKeys))
	for _, encoded := range verificationKeys {
		key, err := ParseVerificationKey(encoded)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return &RequestVerifier{
		appID:     appID,
		appSecret: appSecret,
		keys:      keys,
	}, nil
}

// VerifyRequest authenticates an inbound request: basic auth must match the
// application credentials, the app-id header must match, and the signature
// header must verify against the canonical envelope rebuilt from the
// request. Returns the parsed body on success so handlers can skip a second
// decode.
func (v *RequestVerifier) VerifyRequest(method, url string, body []byte, header http.Header) (interface{}, error) {
	if err := v.verifyBasicAuth(header.Get("Authorization")); err != nil {
		return nil, err
	}

	if appID := header.Get(HeaderAppID); appID != v.appID {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeSigning,
			fmt.Sprintf("unknown app id %q", appID), nil)
	}

	parsed, err := decodeBody(body)
	if err != nil {
		return nil, err
	}

	envelope := NewSignedRequestEnvelope(method, url, parsed, v.appID)
	if err := v.verifySignatures(envelope, header.Get(HeaderSignature)); err != nil {
		return nil, err
	}

	return parsed, nil
}

func (v *RequestVerifier) verifyBasicAuth(authorization string) error {
	encoded, ok := strings.CutPrefix(authorization, "Basic ")
	if !ok {
		return agentkit.NewWalletError(agentkit.ErrCodeSigning,
			"missing basic authorization", nil)
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return agentkit.NewWalletError(agentkit.ErrCodeSigning,
			"malformed basic authorization", nil)
	}

	expected := []byte(v.appID + ":" + v.appSecret)
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return agentkit.NewWalletError(agentkit.ErrCodeSigning,
			"invalid application credentials", nil)
	}
	return nil
}

func (v *RequestVerifier) verifySignatures(envelope *SignedRequestEnvelope, header string) error {
	if header == "" {
		return agentkit.NewWalletError(agentkit.ErrCodeSigning,
			"missing authorization signature", nil)
	}

	for _, signature := range strings.Split(header, ",") {
		for _, key := range v.keys {
			ok, err := VerifySignature(key, envelope, strings.TrimSpace(signature))
			if err == nil && ok {
				return nil
			}
		}
	}

	return agentkit.NewWalletError(agentkit.ErrCodeSigning,
		"invalid authorization signature", nil)
}

// decodeBody parses a request body preserving numeric literals, so the
// rebuilt envelope canonicalizes to the exact bytes the sender signed
func decodeBody(body []byte) (interface{}, error) {
	if len(body) == 0 {
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeSigning,
			fmt.Sprintf("request body is not valid JSON: %v", err), nil)
	}
	return value, nil
}

// RequestURL rebuilds the URL a client signed. With a configured base URL
// the request URI is appended to it; otherwise the URL is derived from the
// request itself.
func RequestURL(r *http.Request, baseURL string) string {
	if baseURL != "" {
		return strings.TrimSuffix(baseURL, "/") + r.URL.RequestURI()
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
