package echo

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/thirdfy/agentkit"
	"github.com/thirdfy/agentkit/custodial"
)

const (
	testAppID   = "app-1"
	testSecret  = "app-secret"
	testBaseURL = "https://api.example.test"
)

func newTestKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	return key, base64.StdEncoding.EncodeToString(der)
}

func verificationKey(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(der)
}

func signedRequest(t *testing.T, signer *custodial.RequestSigner, path string, body interface{}) *http.Request {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	headers, err := signer.AuthHeaders(http.MethodPost, testBaseURL+path, body)
	if err != nil {
		t.Fatalf("failed to sign request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func testServer(t *testing.T, config Config, gotParsed *interface{}, gotBody *[]byte) *echo.Echo {
	t.Helper()

	mw, err := SignatureVerification(config)
	if err != nil {
		t.Fatalf("SignatureVerification failed: %v", err)
	}

	e := echo.New()
	e.POST("/wallets/rpc", func(c echo.Context) error {
		*gotParsed = c.Get(ContextKeyVerifiedBody)
		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			t.Errorf("failed to re-read body: %v", err)
		}
		*gotBody = raw
		return c.NoContent(http.StatusOK)
	}, mw)
	return e
}

func TestSignatureVerification(t *testing.T) {
	key, secret := newTestKey(t)
	signer, err := custodial.NewRequestSigner(testAppID, testSecret, agentkit.AuthorizationCredential{
		KeySecret: secret,
		KeyID:     "key-1",
	})
	if err != nil {
		t.Fatalf("NewRequestSigner failed: %v", err)
	}

	var gotParsed interface{}
	var gotBody []byte
	e := testServer(t, Config{
		AppID:            testAppID,
		AppSecret:        testSecret,
		VerificationKeys: []string{verificationKey(t, key)},
		BaseURL:          testBaseURL,
	}, &gotParsed, &gotBody)

	body := map[string]interface{}{"method": "personal_sign", "count": 3}
	req := signedRequest(t, signer, "/wallets/rpc", body)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}

	want := map[string]interface{}{"method": "personal_sign", "count": json.Number("3")}
	if !reflect.DeepEqual(gotParsed, want) {
		t.Errorf("Expected verified body %v, got %v", want, gotParsed)
	}
	if wantRaw, _ := json.Marshal(body); !bytes.Equal(gotBody, wantRaw) {
		t.Errorf("Expected body %s to remain readable, got %s", wantRaw, gotBody)
	}
}

func TestSignatureVerification_TamperedBody(t *testing.T) {
	key, secret := newTestKey(t)
	signer, err := custodial.NewRequestSigner(testAppID, testSecret, agentkit.AuthorizationCredential{
		KeySecret: secret,
	})
	if err != nil {
		t.Fatalf("NewRequestSigner failed: %v", err)
	}

	var gotParsed interface{}
	var gotBody []byte
	e := testServer(t, Config{
		AppID:            testAppID,
		AppSecret:        testSecret,
		VerificationKeys: []string{verificationKey(t, key)},
		BaseURL:          testBaseURL,
	}, &gotParsed, &gotBody)

	req := signedRequest(t, signer, "/wallets/rpc", map[string]interface{}{"method": "personal_sign"})
	req.Body = io.NopCloser(strings.NewReader(`{"method":"eth_sendTransaction"}`))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if !strings.Contains(resp["error"], "invalid authorization signature") {
		t.Errorf("Expected signature error, got %q", resp["error"])
	}
	if gotParsed != nil {
		t.Error("Expected handler to be skipped")
	}
}

func TestSignatureVerification_MissingHeaders(t *testing.T) {
	key, _ := newTestKey(t)

	var gotParsed interface{}
	var gotBody []byte
	e := testServer(t, Config{
		AppID:            testAppID,
		AppSecret:        testSecret,
		VerificationKeys: []string{verificationKey(t, key)},
		BaseURL:          testBaseURL,
	}, &gotParsed, &gotBody)

	req := httptest.NewRequest(http.MethodPost, "/wallets/rpc", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if !strings.Contains(resp["error"], "missing basic authorization") {
		t.Errorf("Expected missing-auth error, got %q", resp["error"])
	}
}

func TestSignatureVerification_Config(t *testing.T) {
	if _, err := SignatureVerification(Config{AppID: testAppID, AppSecret: testSecret}); err == nil {
		t.Error("Expected error without verification keys")
	}
	if _, err := SignatureVerification(Config{
		AppID:            testAppID,
		AppSecret:        testSecret,
		VerificationKeys: []string{"garbage"},
	}); err == nil {
		t.Error("Expected error for an unparseable key")
	}
}
