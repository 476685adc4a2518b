package agentkit

import (
	"fmt"
	"math/big"
	"strings"
)

// Network represents a blockchain network identifier in CAIP-2 format
// Format: namespace:reference (e.g., "eip155:8453" for Base mainnet)
type Network string

// Parse splits the network into namespace and reference components
func (n Network) Parse() (namespace, reference string, err error) {
	parts := strings.Split(string(n), ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid network format: %s", n)
	}
	return parts[0], parts[1], nil
}

// Match checks if this network matches a pattern (supports wildcards)
// e.g., "eip155:8453" matches "eip155:*" and "eip155:*" matches "eip155:8453"
func (n Network) Match(pattern Network) bool {
	if n == pattern {
		return true
	}

	nStr := string(n)
	patternStr := string(pattern)

	if strings.HasSuffix(patternStr, ":*") {
		prefix := strings.TrimSuffix(patternStr, "*")
		return strings.HasPrefix(nStr, prefix)
	}

	if strings.HasSuffix(nStr, ":*") {
		prefix := strings.TrimSuffix(nStr, "*")
		return strings.HasPrefix(patternStr, prefix)
	}

	return false
}

// Chain family identifiers used to register providers
const (
	ChainFamilyEvm = "evm"
	ChainFamilySvm = "svm"
)

// Family returns the provider family responsible for the network's
// namespace, or "" when the namespace is unknown.
func (n Network) Family() string {
	namespace, _, err := n.Parse()
	if err != nil {
		return ""
	}
	switch namespace {
	case "eip155":
		return ChainFamilyEvm
	case "solana":
		return ChainFamilySvm
	}
	return ""
}

// Chain types understood by the custodial wallet service
const (
	ChainTypeEthereum = "ethereum"
	ChainTypeSolana   = "solana"
)

// GaslessContext labels the intent of a sponsored transaction for the
// sponsorship service
type GaslessContext string

// Sponsorship contexts accepted by the wallet API
const (
	GaslessContextSwap         GaslessContext = "swap"
	GaslessContextTransfer     GaslessContext = "transfer"
	GaslessContextConversion   GaslessContext = "conversion"
	GaslessContextFaucet       GaslessContext = "faucet"
	GaslessContextApproval     GaslessContext = "approval"
	GaslessContextContractCall GaslessContext = "contract_call"
	GaslessContextOther        GaslessContext = "other"
)

// Quantity holds a numeric transaction field in any accepted representation:
// *big.Int, integer, integral float, json.Number, decimal.Decimal, or a
// decimal/hex string. The wallet API requires hex, so quantities are
// normalized before they go on the wire.
type Quantity interface{}

// TransactionRequest describes a transaction to sign or send
type TransactionRequest struct {
	To       string   `json:"to"`
	Value    Quantity `json:"value,omitempty"`
	Data     string   `json:"data,omitempty"`
	GasLimit Quantity `json:"gasLimit,omitempty"`
}

// TypedDataDomain represents the EIP-712 domain separator
type TypedDataDomain struct {
	Name              string   `json:"name,omitempty"`
	Version           string   `json:"version,omitempty"`
	ChainID           *big.Int `json:"chainId,omitempty"`
	VerifyingContract string   `json:"verifyingContract,omitempty"`
	Salt              string   `json:"salt,omitempty"`
}

// TypedDataField represents a single field in an EIP-712 type definition
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedData is a complete EIP-712 payload
type TypedData struct {
	Domain      TypedDataDomain             `json:"domain"`
	Types       map[string][]TypedDataField `json:"types"`
	PrimaryType string                      `json:"primaryType"`
	Message     map[string]interface{}      `json:"message"`
}

// TransactionReceipt summarizes a mined transaction
type TransactionReceipt struct {
	Status      uint64   `json:"status"`
	BlockNumber *big.Int `json:"blockNumber"`
	TxHash      string   `json:"txHash"`
	GasUsed     uint64   `json:"gasUsed"`
}

// ReadContractParams describes a read-only contract call
type ReadContractParams struct {
	Address string        `json:"address"`
	ABI     string        `json:"abi"`
	Method  string        `json:"method"`
	Args    []interface{} `json:"args,omitempty"`
}

// WalletIdentity pins a provider to one custodial wallet. Address and
// ChainID are resolved once at construction and never reassigned.
type WalletIdentity struct {
	WalletID         string `json:"walletId"`
	EmbeddedWalletID string `json:"embeddedWalletId,omitempty"`
	Address          string `json:"address"`
	NetworkID        string `json:"networkId"`
	ChainID          int64  `json:"chainId"`
}

// AuthorizationCredential is a request-signing credential for the custodial
// wallet API. A provider carries two slots: the default signing credential
// and an optional sponsorship credential used only for gasless calls.
type AuthorizationCredential struct {
	KeySecret string `json:"keySecret"`
	KeyID     string `json:"keyId,omitempty"`
}

// ExportedWallet carries everything needed to reconstruct an equivalent
// provider without a fresh identity lookup
type ExportedWallet struct {
	WalletID           string `json:"walletId"`
	EmbeddedWalletID   string `json:"embeddedWalletId,omitempty"`
	Address            string `json:"address"`
	AuthorizationKey   string `json:"authorizationKey"`
	AuthorizationKeyID string `json:"authorizationKeyId,omitempty"`
	NetworkID          string `json:"networkId"`
	ChainID            int64  `json:"chainId"`
}
