// Package sponsor decides gasless eligibility per chain, builds sponsorship
// requests, and falls back to the unsponsored path on a bounded set of
// recoverable errors.
package sponsor

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/thirdfy/agentkit"
)

// DefaultEligibleChainIDs is the hardcoded tail of the policy resolution
// chain: Base mainnet and Base Sepolia.
var DefaultEligibleChainIDs = []int64{8453, 84532}

// envDefaults is the process-wide environment fallback for gasless policy
// fields. Explicit configuration always wins.
type envDefaults struct {
	GaslessEnabled  *bool   `env:"THIRDFY_GASLESS_ENABLED"`
	GaslessChainIDs []int64 `env:"THIRDFY_GASLESS_CHAIN_IDS"`
}

// GaslessPolicy captures the gasless routing decision inputs. It is derived
// once at provider construction and immutable for the provider's lifetime.
type GaslessPolicy struct {
	enabled          bool
	eligibleChainIDs map[int64]struct{}
	defaultContext   agentkit.GaslessContext
}

// PolicyConfig is the explicit configuration for a gasless policy. Unset
// fields fall back to environment defaults, then to hardcoded defaults.
type PolicyConfig struct {
	// Enabled turns gasless routing on or off. Nil means "not configured".
	Enabled *bool

	// ChainIDs lists the chain ids eligible for sponsorship
	ChainIDs []int64

	// DefaultContext labels sponsored sends for the wallet API (optional,
	// defaults to GaslessContextOther)
	DefaultContext agentkit.GaslessContext
}

// ResolvePolicy derives a GaslessPolicy from explicit configuration,
// falling back to environment defaults, falling back to the hardcoded
// defaults (disabled; Base and Base Sepolia eligible).
func ResolvePolicy(config PolicyConfig) (*GaslessPolicy, error) {
	var envCfg envDefaults
	if err := env.Parse(&envCfg); err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			fmt.Sprintf("failed to parse gasless environment defaults: %v", err), nil)
	}

	enabled := false
	switch {
	case config.Enabled != nil:
		enabled = *config.Enabled
	case envCfg.GaslessEnabled != nil:
		enabled = *envCfg.GaslessEnabled
	}

	chainIDs := config.ChainIDs
	if len(chainIDs) == 0 {
		chainIDs = envCfg.GaslessChainIDs
	}
	if len(chainIDs) == 0 {
		chainIDs = DefaultEligibleChainIDs
	}

	eligible := make(map[int64]struct{}, len(chainIDs))
	for _, id := range chainIDs {
		eligible[id] = struct{}{}
	}

	defaultContext := config.DefaultContext
	if defaultContext == "" {
		defaultContext = agentkit.GaslessContextOther
	}

	return &GaslessPolicy{
		enabled:          enabled,
		eligibleChainIDs: eligible,
		defaultContext:   defaultContext,
	}, nil
}

// Enabled reports whether gasless routing is enabled at all
func (p *GaslessPolicy) Enabled() bool {
	return p.enabled
}

// DefaultContext returns the context label attached to sponsored sends
func (p *GaslessPolicy) DefaultContext() agentkit.GaslessContext {
	return p.defaultContext
}

// EligibleFor reports whether gasless routing applies to a chain id.
// Eligibility is an exact integer match; no range or wildcard matching.
func (p *GaslessPolicy) EligibleFor(chainID int64) bool {
	if !p.enabled {
		return false
	}
	_, ok := p.eligibleChainIDs[chainID]
	return ok
}
