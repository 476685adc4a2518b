package custodial

import (
	"github.com/thirdfy/agentkit"
)

// RPC methods accepted by the wallet API signing endpoint
const (
	MethodPersonalSign    = "personal_sign"
	MethodSignTypedData   = "eth_signTypedData_v4"
	MethodSignTransaction = "eth_signTransaction"
	MethodSendTransaction = "eth_sendTransaction"
	MethodSecp256k1Sign   = "secp256k1_sign"

	MethodSolanaSignMessage     = "signMessage"
	MethodSolanaSignTransaction = "signTransaction"
	MethodSolanaSignAndSend     = "signAndSendTransaction"
)

// RPCRequest is the body of a wallet API signing call
type RPCRequest struct {
	Address   string                 `json:"address"`
	ChainType string                 `json:"chain_type"`
	Method    string                 `json:"method"`
	Params    map[string]interface{} `json:"params"`
}

// RPCData carries the method-specific result fields of a wallet API call
type RPCData struct {
	Signature         string `json:"signature,omitempty"`
	SignedTransaction string `json:"signed_transaction,omitempty"`
	Hash              string `json:"hash,omitempty"`
	Encoding          string `json:"encoding,omitempty"`
}

// RPCResponse is the wallet API's response envelope
type RPCResponse struct {
	Method string  `json:"method,omitempty"`
	Data   RPCData `json:"data"`
}

// Wallet is the identity record returned by the wallet lookup endpoint
type Wallet struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	ChainType string `json:"chain_type"`
}

// WalletSelector identifies which wallet a sponsorship call authenticates
// as. Exactly one of EmbeddedWalletID, WalletID, or Address+ChainType is
// set.
type WalletSelector struct {
	WalletID         string `json:"wallet_id,omitempty"`
	EmbeddedWalletID string `json:"embedded_wallet_id,omitempty"`
	Address          string `json:"address,omitempty"`
	ChainType        string `json:"chain_type,omitempty"`
}

// SponsoredTransaction is the chain-qualified transaction payload of a
// sponsorship call. Numeric fields arrive already normalized to hex.
type SponsoredTransaction struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value,omitempty"`
	GasLimit string `json:"gas_limit,omitempty"`
}

// SendTransactionRequest is the body of a sponsorship call
type SendTransactionRequest struct {
	WalletSelector
	CAIP2       string                  `json:"caip2"`
	Sponsor     bool                    `json:"sponsor"`
	Transaction SponsoredTransaction    `json:"transaction"`
	Context     agentkit.GaslessContext `json:"context,omitempty"`
}

// AuthorizationContext carries extra authorization key secrets presented to
// authorize a sensitive operation (sponsorship). The keys contribute
// additional request signatures; they never appear in a request body.
type AuthorizationContext struct {
	KeySecrets []string
}
