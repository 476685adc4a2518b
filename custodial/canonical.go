// Package custodial implements the authenticated client for the remote
// wallet API: canonical request serialization, P-256 request signing, the
// signing RPC and sponsorship endpoints, and the per-credential client
// cache.
package custodial

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SignatureVersion is the canonical request signature scheme version
const SignatureVersion = 1

// CanonicalJSON serializes a value deterministically: object keys sorted
// recursively, no whitespace variance. Semantically identical payloads
// always produce byte-identical serializations, which is required because
// request signatures cover the serialized bytes.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	// Round-trip through an untyped value so struct field order is erased
	// and map keys sort. UseNumber keeps numeric literals exact.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var norm interface{}
	if err := dec.Decode(&norm); err != nil {
		return nil, fmt.Errorf("failed to normalize payload: %w", err)
	}

	canonical, err := json.Marshal(norm)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal canonical payload: %w", err)
	}
	return canonical, nil
}

// SignedRequestEnvelope is the structure whose canonical serialization is
// signed for every outbound wallet API call. It is built per call and never
// persisted.
type SignedRequestEnvelope struct {
	Version int               `json:"version"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    interface{}       `json:"body"`
	Headers map[string]string `json:"headers"`
}

// NewSignedRequestEnvelope builds the envelope for an outbound request. The
// headers subset carries only the app-id header, which binds the signature
// to the calling application.
func NewSignedRequestEnvelope(method, url string, body interface{}, appID string) *SignedRequestEnvelope {
	return &SignedRequestEnvelope{
		Version: SignatureVersion,
		Method:  method,
		URL:     url,
		Body:    body,
		Headers: map[string]string{HeaderAppID: appID},
	}
}

// Canonical returns the canonical serialization of the envelope
func (e *SignedRequestEnvelope) Canonical() ([]byte, error) {
	return CanonicalJSON(e)
}
