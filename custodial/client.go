package custodial

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thirdfy/agentkit"
)

// DefaultBaseURL is the default wallet API endpoint
const DefaultBaseURL = "https://api.thirdfy.com/v1"

// defaultTimeout bounds wallet API requests when no HTTP client is injected
const defaultTimeout = 30 * time.Second

// Config configures a wallet API client
type Config struct {
	// BaseURL is the wallet API base URL (optional, defaults to
	// DefaultBaseURL)
	BaseURL string

	// AppID and AppSecret authenticate the calling application
	AppID     string
	AppSecret string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests when HTTPClient is nil (optional, defaults to 30s)
	Timeout time.Duration

	// Headers are extra default headers attached to every request (optional)
	Headers map[string]string
}

// Client is an authenticated wallet API client bound to one request-signing
// credential. Every outbound body is signed through the canonical request
// signer; only the body varies between operations.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *RequestSigner
	headers    map[string]string
}

// NewClient creates a wallet API client for a signing credential.
// Credential validation happens here, synchronously; a client with
// unusable key material is never returned.
func NewClient(config Config, credential agentkit.AuthorizationCredential) (*Client, error) {
	signer, err := NewRequestSigner(config.AppID, config.AppSecret, credential)
	if err != nil {
		return nil, err
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	// The key id, when present, is injected into the default headers once
	// at creation, not per call.
	headers := make(map[string]string, len(config.Headers)+1)
	for k, v := range config.Headers {
		headers[k] = v
	}
	if credential.KeyID != "" {
		headers[HeaderKeyID] = credential.KeyID
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		signer:     signer,
		headers:    headers,
	}, nil
}

// Signer returns the client's request signer
func (c *Client) Signer() *RequestSigner {
	return c.signer
}

// Wallet fetches the identity record for a wallet id
func (c *Client) Wallet(ctx context.Context, walletID string) (*Wallet, error) {
	if walletID == "" {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			"wallet id is required", nil)
	}

	var wallet Wallet
	if err := c.do(ctx, http.MethodGet, "/wallets/"+walletID, nil, &wallet, nil); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// RPC executes a signing call against the wallet API
func (c *Client) RPC(ctx context.Context, request *RPCRequest) (*RPCResponse, error) {
	var response RPCResponse
	if err := c.do(ctx, http.MethodPost, "/wallets/rpc", request, &response, nil); err != nil {
		return nil, err
	}
	return &response, nil
}

// SendTransaction executes a sponsorship call against the wallet API. The
// authorization context, when present, contributes extra request
// signatures; the idempotency key, when present, rides in a header.
func (c *Client) SendTransaction(ctx context.Context, request *SendTransactionRequest, authCtx *AuthorizationContext, idempotencyKey string) (*RPCResponse, error) {
	var contextKeys []*ecdsa.PrivateKey
	if authCtx != nil {
		contextKeys = make([]*ecdsa.PrivateKey, 0, len(authCtx.KeySecrets))
		for _, secret := range authCtx.KeySecrets {
			key, err := ParseAuthorizationKey(secret)
			if err != nil {
				return nil, err
			}
			contextKeys = append(contextKeys, key)
		}
	}

	extra := map[string]string{}
	if idempotencyKey != "" {
		extra[HeaderIdempotencyKey] = idempotencyKey
	}

	var response RPCResponse
	if err := c.doSigned(ctx, http.MethodPost, "/wallets/send", request, &response, extra, contextKeys); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, extraHeaders map[string]string) error {
	return c.doSigned(ctx, method, path, body, out, extraHeaders, nil)
}

func (c *Client) doSigned(ctx context.Context, method, path string, body, out interface{}, extraHeaders map[string]string, contextKeys []*ecdsa.PrivateKey) error {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	// Bodyless requests carry basic auth and the app-id header; bodies are
	// additionally signed.
	if body != nil {
		authHeaders, err := c.signer.AuthHeaders(method, url, body, contextKeys...)
		if err != nil {
			return err
		}
		for k, v := range authHeaders {
			req.Header.Set(k, v)
		}
	} else {
		for k, v := range c.signer.BasicHeaders() {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return agentkit.NewWalletError(agentkit.ErrCodeTransport,
			fmt.Sprintf("wallet api request failed: %v", err), nil)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return agentkit.NewWalletError(agentkit.ErrCodeTransport,
			fmt.Sprintf("failed to read response body: %v", err), nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return agentkit.NewWalletError(agentkit.ErrCodeTransport,
			fmt.Sprintf("wallet api %s %s failed (%d): %s", method, path, resp.StatusCode, string(responseBody)),
			map[string]interface{}{
				"httpStatus": resp.StatusCode,
				"body":       string(responseBody),
			})
	}

	if out != nil {
		if err := json.Unmarshal(responseBody, out); err != nil {
			return fmt.Errorf("failed to decode wallet api response: %w", err)
		}
	}

	return nil
}
