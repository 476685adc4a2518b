package custodial

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/thirdfy/agentkit"
)

// Wallet API authentication headers
const (
	HeaderAppID          = "thirdfy-app-id"
	HeaderSignature      = "thirdfy-authorization-signature"
	HeaderKeyID          = "thirdfy-authorization-key-id"
	HeaderIdempotencyKey = "thirdfy-idempotency-key"
)

// KeySecretPrefix tags stored authorization key secrets. The prefix is a
// storage convention and is stripped before the key material is parsed.
const KeySecretPrefix = "wallet-auth:"

// ParseAuthorizationKey reconstructs a P-256 private key from a stored key
// secret: optional KeySecretPrefix, then base64 DER (PKCS#8)
func ParseAuthorizationKey(secret string) (*ecdsa.PrivateKey, error) {
	if secret == "" {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeSigning,
			"authorization key secret is missing", nil)
	}

	der, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, KeySecretPrefix))
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeSigning,
			fmt.Sprintf("authorization key secret is not base64: %v", err), nil)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		// Older exports use SEC 1 encoding
		if ecKey, ecErr := x509.ParseECPrivateKey(der); ecErr == nil {
			parsed = ecKey
		} else {
			return nil, agentkit.NewWalletError(agentkit.ErrCodeSigning,
				fmt.Sprintf("failed to parse authorization key: %v", err), nil)
		}
	}

	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeSigning,
			"authorization key is not an ECDSA key", nil)
	}
	if key.Curve != elliptic.P256() {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeSigning,
			"authorization key must use the P-256 curve", nil)
	}

	return key, nil
}

// ParseVerificationKey reconstructs a P-256 public key from its base64 DER
// (PKIX) form. Services verifying inbound request signatures use this.
func ParseVerificationKey(encoded string) (*ecdsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeSigning,
			fmt.Sprintf("verification key is not base64: %v", err), nil)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeSigning,
			fmt.Sprintf("failed to parse verification key: %v", err), nil)
	}

	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok || key.Curve != elliptic.P256() {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeSigning,
			"verification key must be a P-256 ECDSA key", nil)
	}

	return key, nil
}

// RequestSigner produces authenticated headers for wallet API requests.
// The signature covers the canonical serialization of the request envelope,
// so identical requests always verify against the same bytes.
type RequestSigner struct {
	appID      string
	appSecret  string
	privateKey *ecdsa.PrivateKey
	keyID      string
}

// NewRequestSigner creates a signer bound to one application and one
// authorization credential. Bad or missing key material fails here, at
// construction; it is a configuration fault and is never retried.
func NewRequestSigner(appID, appSecret string, credential agentkit.AuthorizationCredential) (*RequestSigner, error) {
	if appID == "" || appSecret == "" {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			"app id and app secret are required", nil)
	}

	key, err := ParseAuthorizationKey(credential.KeySecret)
	if err != nil {
		return nil, err
	}

	return &RequestSigner{
		appID:      appID,
		appSecret:  appSecret,
		privateKey: key,
		keyID:      credential.KeyID,
	}, nil
}

// PublicKey returns the signer's verification key
func (s *RequestSigner) PublicKey() *ecdsa.PublicKey {
	return &s.privateKey.PublicKey
}

// KeyID returns the credential's key identifier, if any
func (s *RequestSigner) KeyID() string {
	return s.keyID
}

// SignEnvelope signs the canonical form of an envelope with the signer's
// key, returning the base64 signature
func (s *RequestSigner) SignEnvelope(envelope *SignedRequestEnvelope) (string, error) {
	return signEnvelopeWith(s.privateKey, envelope)
}

// BasicHeaders returns the basic-auth and app-id headers without a request
// signature, for bodyless requests
func (s *RequestSigner) BasicHeaders() map[string]string {
	basic := base64.StdEncoding.EncodeToString([]byte(s.appID + ":" + s.appSecret))
	return map[string]string{
		"Authorization": "Basic " + basic,
		HeaderAppID:     s.appID,
	}
}

// AuthHeaders builds the full authentication header set for a request:
// basic auth of the application credentials, the app-id header, and the
// request signature header. contextKeys contribute additional signatures,
// comma-joined, for operations that require an authorization context.
func (s *RequestSigner) AuthHeaders(method, url string, body interface{}, contextKeys ...*ecdsa.PrivateKey) (map[string]string, error) {
	envelope := NewSignedRequestEnvelope(method, url, body, s.appID)

	signatures := make([]string, 0, 1+len(contextKeys))
	sig, err := s.SignEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	signatures = append(signatures, sig)

	for _, key := range contextKeys {
		extra, err := signEnvelopeWith(key, envelope)
		if err != nil {
			return nil, err
		}
		signatures = append(signatures, extra)
	}

	headers := s.BasicHeaders()
	headers[HeaderSignature] = strings.Join(signatures, ",")
	return headers, nil
}

// VerifySignature checks a base64 request signature against the canonical
// form of an envelope
func VerifySignature(key *ecdsa.PublicKey, envelope *SignedRequestEnvelope, signature string) (bool, error) {
	canonical, err := envelope.Canonical()
	if err != nil {
		return false, err
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, agentkit.NewWalletError(agentkit.ErrCodeSigning,
			fmt.Sprintf("signature is not base64: %v", err), nil)
	}

	digest := sha256.Sum256(canonical)
	return ecdsa.VerifyASN1(key, digest[:], sig), nil
}

func signEnvelopeWith(key *ecdsa.PrivateKey, envelope *SignedRequestEnvelope) (string, error) {
	canonical, err := envelope.Canonical()
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(canonical)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSigning,
			fmt.Sprintf("failed to sign request: %v", err), nil)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}
