package agentkit

import (
	"context"
	"math/big"
)

// ============================================================================
// Wallet Provider Interfaces
// ============================================================================

// WalletProvider is the capability surface shared by every custody backend.
// Concrete providers form a tagged family: a new backend implements this
// interface (plus a chain-family extension below) without modifying existing
// providers.
type WalletProvider interface {
	// GetName returns the provider's registered name (e.g.,
	// "embedded_wallet_provider"). Pure accessor, never fails.
	GetName() string

	// GetAddress returns the wallet address. Pure accessor, never fails.
	GetAddress() string

	// GetNetwork returns the active network in CAIP-2 form
	GetNetwork() Network

	// ChainFamily returns the provider family this backend serves.
	//
	// Examples:
	//   - EVM providers return "evm"
	//   - SVM providers return "svm"
	ChainFamily() string

	// GetBalance reads the native balance of the wallet address
	GetBalance(ctx context.Context) (*big.Int, error)

	// SignMessage signs a human-readable message with the wallet key
	SignMessage(ctx context.Context, message string) (string, error)

	// SendTransaction signs and submits a transaction, returning its hash
	SendTransaction(ctx context.Context, tx *TransactionRequest) (string, error)

	// NativeTransfer sends the native asset to a recipient and waits for
	// inclusion, returning the transaction hash
	NativeTransfer(ctx context.Context, to string, value *big.Int) (string, error)
}

// EvmWalletProvider is implemented by providers for eip155 networks
type EvmWalletProvider interface {
	WalletProvider

	// SignHash signs a 32-byte hash (0x-prefixed hex)
	SignHash(ctx context.Context, hash string) (string, error)

	// SignTypedData signs an EIP-712 payload
	SignTypedData(ctx context.Context, typedData *TypedData) (string, error)

	// SignTransaction signs a transaction without submitting it, returning
	// the RLP-encoded signed transaction
	SignTransaction(ctx context.Context, tx *TransactionRequest) (string, error)

	// WaitForTransactionReceipt blocks until the transaction is mined or the
	// context expires
	WaitForTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error)

	// ReadContract performs a read-only contract call.
	// Returns a single value when the method has one output, or a slice of
	// values for multiple outputs.
	ReadContract(ctx context.Context, params *ReadContractParams) (interface{}, error)
}

// SvmWalletProvider is implemented by providers for solana networks
type SvmWalletProvider interface {
	WalletProvider

	// SignTransaction signs a base64-encoded serialized transaction and
	// returns the signed transaction, base64-encoded
	SignTransaction(ctx context.Context, encodedTx string) (string, error)

	// GetTokenBalance reads the wallet's SPL token balance in base units
	GetTokenBalance(ctx context.Context, mint string) (*big.Int, error)
}

// Exporter is implemented by providers whose identity and credentials can be
// captured for later reconstruction without a fresh identity lookup
type Exporter interface {
	ExportWallet() ExportedWallet
}
