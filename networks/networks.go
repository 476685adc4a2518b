// Package networks maps logical network identifiers to chain definitions
// and read-only blockchain clients.
package networks

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/thirdfy/agentkit"
)

// ChainIDs maps logical EVM network identifiers to their chain IDs.
var ChainIDs = map[string]int64{
	"ethereum":       1,
	"sepolia":        11155111,
	"base":           8453,
	"base-sepolia":   84532,
	"polygon":        137,
	"polygon-amoy":   80002,
	"avalanche":      43114,
	"avalanche-fuji": 43113,
}

// DefaultRPCURLs maps logical EVM network identifiers to public RPC
// endpoints. An explicit override URL always wins over these.
var DefaultRPCURLs = map[string]string{
	"ethereum":       "https://eth.llamarpc.com",
	"sepolia":        "https://ethereum-sepolia-rpc.publicnode.com",
	"base":           "https://mainnet.base.org",
	"base-sepolia":   "https://sepolia.base.org",
	"polygon":        "https://polygon-rpc.com",
	"polygon-amoy":   "https://rpc-amoy.polygon.technology",
	"avalanche":      "https://api.avax.network/ext/bc/C/rpc",
	"avalanche-fuji": "https://api.avax-test.network/ext/bc/C/rpc",
}

// SolanaRPCURLs maps Solana cluster aliases to public RPC endpoints.
var SolanaRPCURLs = map[string]string{
	"mainnet-beta": "https://api.mainnet-beta.solana.com",
	"devnet":       "https://api.devnet.solana.com",
	"testnet":      "https://api.testnet.solana.com",
}

// EVMNetworks is the list of all known logical EVM network identifiers.
var EVMNetworks []string

func init() {
	EVMNetworks = make([]string, 0, len(ChainIDs))
	for name := range ChainIDs {
		EVMNetworks = append(EVMNetworks, name)
	}
}

// ChainID returns the chain id for a logical EVM network identifier
func ChainID(networkID string) (int64, error) {
	chainID, ok := ChainIDs[networkID]
	if !ok {
		return 0, agentkit.NewWalletError(agentkit.ErrCodeUnsupportedChain,
			fmt.Sprintf("unknown network id: %s", networkID), nil)
	}
	return chainID, nil
}

// NetworkForChainID returns the logical network identifier for a chain id
func NetworkForChainID(chainID int64) (string, error) {
	for networkID, id := range ChainIDs {
		if id == chainID {
			return networkID, nil
		}
	}
	return "", agentkit.NewWalletError(agentkit.ErrCodeUnsupportedChain,
		fmt.Sprintf("unknown chain id: %d", chainID), nil)
}

// CAIP2 renders a logical EVM network identifier in CAIP-2 form
func CAIP2(networkID string) (agentkit.Network, error) {
	chainID, err := ChainID(networkID)
	if err != nil {
		return "", err
	}
	return CAIP2ForChainID(chainID), nil
}

// CAIP2ForChainID renders an EVM chain id in CAIP-2 form
func CAIP2ForChainID(chainID int64) agentkit.Network {
	return agentkit.Network(fmt.Sprintf("eip155:%d", chainID))
}

// SolanaCAIP2 renders a Solana cluster alias in CAIP-2 form
func SolanaCAIP2(cluster string) agentkit.Network {
	return agentkit.Network("solana:" + cluster)
}

// SolanaRPCURL returns the RPC endpoint for a Solana cluster alias.
// overrideURL, when non-empty, wins over the well-known default.
func SolanaRPCURL(cluster, overrideURL string) (string, error) {
	if overrideURL != "" {
		return overrideURL, nil
	}
	url, ok := SolanaRPCURLs[cluster]
	if !ok {
		return "", agentkit.NewWalletError(agentkit.ErrCodeUnsupportedChain,
			fmt.Sprintf("unknown solana cluster: %s", cluster), nil)
	}
	return url, nil
}

// Chain binds a resolved network to a read-capable blockchain client
type Chain struct {
	NetworkID string
	ChainID   int64
	RPCURL    string
	Client    *ethclient.Client
}

// BigChainID returns the chain id as a *big.Int for go-ethereum call sites
func (c *Chain) BigChainID() *big.Int {
	return big.NewInt(c.ChainID)
}

// Resolve maps a logical EVM network identifier to a chain definition and a
// read-only client bound to that chain's RPC endpoint. overrideURL, when
// non-empty, wins over the well-known default. Resolution failure is fatal
// to provider creation: a provider must never exist with an unresolvable
// chain.
func Resolve(ctx context.Context, networkID, overrideURL string) (*Chain, error) {
	chainID, err := ChainID(networkID)
	if err != nil {
		return nil, err
	}

	rpcURL := overrideURL
	if rpcURL == "" {
		rpcURL = DefaultRPCURLs[networkID]
	}
	if rpcURL == "" {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeUnsupportedChain,
			fmt.Sprintf("no RPC endpoint known for network %s", networkID), nil)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}

	return &Chain{
		NetworkID: networkID,
		ChainID:   chainID,
		RPCURL:    rpcURL,
		Client:    client,
	}, nil
}
