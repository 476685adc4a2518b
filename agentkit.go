package agentkit

import (
	"fmt"
	"sync"
)

// Toolkit aggregates wallet providers and resolves the provider responsible
// for a network. Agent-facing surfaces (the MCP tool server) and
// applications juggling several custody backends route through it.
type Toolkit struct {
	mu sync.RWMutex

	// Chain family -> provider. Registering a second provider for the same
	// family replaces the first.
	providers map[string]WalletProvider

	hooks *SendHooks
}

// ToolkitOption configures the toolkit
type ToolkitOption func(*Toolkit)

// WithWalletProvider registers a wallet provider at creation time
func WithWalletProvider(provider WalletProvider) ToolkitOption {
	return func(t *Toolkit) {
		t.RegisterProvider(provider)
	}
}

// WithSendHooks attaches send lifecycle hooks shared by toolkit consumers
func WithSendHooks(hooks *SendHooks) ToolkitOption {
	return func(t *Toolkit) {
		t.hooks = hooks
	}
}

// NewToolkit creates a new toolkit
func NewToolkit(opts ...ToolkitOption) *Toolkit {
	t := &Toolkit{
		providers: make(map[string]WalletProvider),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// RegisterProvider registers a wallet provider for its chain family
func (t *Toolkit) RegisterProvider(provider WalletProvider) *Toolkit {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.providers[provider.ChainFamily()] = provider

	return t
}

// Provider returns the provider registered for the network's chain family
func (t *Toolkit) Provider(network Network) (WalletProvider, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	family := network.Family()
	if family == "" {
		return nil, NewWalletError(ErrCodeUnsupportedChain,
			fmt.Sprintf("no chain family for network %s", network), nil)
	}

	provider, ok := t.providers[family]
	if !ok {
		return nil, NewWalletError(ErrCodeUnsupportedChain,
			fmt.Sprintf("no wallet provider registered for %s networks", family),
			map[string]interface{}{
				"network": string(network),
			})
	}

	return provider, nil
}

// ProviderForFamily returns the provider registered for a chain family
func (t *Toolkit) ProviderForFamily(family string) (WalletProvider, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	provider, ok := t.providers[family]
	if !ok {
		return nil, NewWalletError(ErrCodeUnsupportedChain,
			fmt.Sprintf("no wallet provider registered for %s networks", family), nil)
	}

	return provider, nil
}

// Providers returns all registered providers
func (t *Toolkit) Providers() []WalletProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()

	providers := make([]WalletProvider, 0, len(t.providers))
	for _, p := range t.providers {
		providers = append(providers, p)
	}
	return providers
}

// Hooks returns the toolkit's shared send hooks, which may be nil
func (t *Toolkit) Hooks() *SendHooks {
	return t.hooks
}
