package embedded

import (
	"fmt"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/thirdfy/agentkit"
)

// Config configures an embedded wallet provider. Explicit fields take
// precedence over process-wide environment defaults; environment defaults
// apply only when the corresponding field is unset.
type Config struct {
	// WalletID identifies the custodial wallet (required)
	WalletID string

	// EmbeddedWalletID identifies the embedded-wallet instance when known.
	// It is the preferred sponsorship selector (optional).
	EmbeddedWalletID string

	// AppID and AppSecret authenticate the calling application (required)
	AppID     string
	AppSecret string

	// AuthorizationKey is the default request-signing key secret (required)
	AuthorizationKey string

	// AuthorizationKeyID is attached to outbound calls as a default header
	// when set (optional)
	AuthorizationKeyID string

	// SponsorAuthorizationKey scopes sponsorship calls to a separate
	// credential. Unset means sponsorship signs with the default
	// credential.
	SponsorAuthorizationKey   string
	SponsorAuthorizationKeyID string

	// SponsorAuthorizationContext lists extra authorization key secrets
	// whose signatures join sponsored calls (optional). The keys sign the
	// request; they never appear in the body.
	SponsorAuthorizationContext []string

	// NetworkID is the logical network to operate on, e.g. "base-sepolia"
	// (required)
	NetworkID string

	// RPCURL overrides the network's default RPC endpoint (optional; falls
	// back to THIRDFY_RPC_URL, then the well-known default)
	RPCURL string

	// APIBaseURL overrides the wallet API endpoint (optional; falls back to
	// THIRDFY_API_URL, then the production default)
	APIBaseURL string

	// Gasless enables sponsorship routing. Nil falls back to
	// THIRDFY_GASLESS_ENABLED, then to disabled.
	Gasless *bool

	// GaslessChainIDs lists sponsorship-eligible chain ids. Empty falls
	// back to THIRDFY_GASLESS_CHAIN_IDS, then to Base and Base Sepolia.
	GaslessChainIDs []int64

	// GaslessContext labels sponsored sends (optional)
	GaslessContext agentkit.GaslessContext

	// HTTPClient overrides the wallet API transport (optional)
	HTTPClient *http.Client

	// ReceiptTimeout bounds WaitForTransactionReceipt (optional, defaults
	// to 2 minutes)
	ReceiptTimeout time.Duration
}

// envConfig is the process-wide environment fallback for endpoint fields
type envConfig struct {
	RPCURL     string `env:"THIRDFY_RPC_URL"`
	APIBaseURL string `env:"THIRDFY_API_URL"`
}

// Validate checks required fields. It runs synchronously in the
// constructor, before any network call; a missing credential or id is a
// configuration fault and is never retried.
func (c *Config) Validate() error {
	var missing string
	switch {
	case c.WalletID == "":
		missing = "wallet id"
	case c.AppID == "":
		missing = "app id"
	case c.AppSecret == "":
		missing = "app secret"
	case c.AuthorizationKey == "":
		missing = "authorization key"
	case c.NetworkID == "":
		missing = "network id"
	}
	if missing != "" {
		return agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			fmt.Sprintf("%s is required", missing), nil)
	}
	return nil
}

// applyEnvDefaults fills unset endpoint fields from the environment
func (c *Config) applyEnvDefaults() error {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			fmt.Sprintf("failed to parse environment defaults: %v", err), nil)
	}

	if c.RPCURL == "" {
		c.RPCURL = envCfg.RPCURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = envCfg.APIBaseURL
	}
	return nil
}

// credential returns the provider's default signing credential
func (c *Config) credential() agentkit.AuthorizationCredential {
	return agentkit.AuthorizationCredential{
		KeySecret: c.AuthorizationKey,
		KeyID:     c.AuthorizationKeyID,
	}
}

// sponsorCredential returns the credential used for sponsorship calls. The
// two slots may be identical or distinct; a deployment with a
// separately-scoped sponsorship key configures the sponsor slot.
func (c *Config) sponsorCredential() agentkit.AuthorizationCredential {
	if c.SponsorAuthorizationKey != "" {
		return agentkit.AuthorizationCredential{
			KeySecret: c.SponsorAuthorizationKey,
			KeyID:     c.SponsorAuthorizationKeyID,
		}
	}
	return c.credential()
}
