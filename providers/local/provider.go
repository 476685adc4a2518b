// Package local implements a wallet provider backed by an in-process
// secp256k1 key. It exists for development and tests; nothing here touches
// the wallet API, and sends are never sponsored.
package local

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/thirdfy/agentkit"
	"github.com/thirdfy/agentkit/networks"
	"github.com/thirdfy/agentkit/sponsor"
)

// ProviderName identifies this provider in hooks and registries
const ProviderName = "local_wallet_provider"

const (
	defaultReceiptTimeout = 2 * time.Minute
	receiptPollInterval   = 2 * time.Second
)

// Config configures a local wallet provider
type Config struct {
	// PrivateKey is the hex-encoded secp256k1 key, with or without the 0x
	// prefix (required)
	PrivateKey string

	// NetworkID is the logical network to operate on (required)
	NetworkID string

	// RPCURL overrides the network's default RPC endpoint (optional)
	RPCURL string

	// ReceiptTimeout bounds WaitForTransactionReceipt (optional, defaults
	// to 2 minutes)
	ReceiptTimeout time.Duration
}

// Provider signs and broadcasts with a key held in process memory
type Provider struct {
	privateKey     *ecdsa.PrivateKey
	address        common.Address
	network        agentkit.Network
	chain          *networks.Chain
	hooks          *agentkit.SendHooks
	receiptTimeout time.Duration
}

var _ agentkit.EvmWalletProvider = (*Provider)(nil)

// Option configures optional provider behavior
type Option func(*providerOptions)

type providerOptions struct {
	hooks *agentkit.SendHooks
}

// WithSendHooks attaches lifecycle hooks to transaction sends
func WithSendHooks(hooks *agentkit.SendHooks) Option {
	return func(o *providerOptions) {
		o.hooks = hooks
	}
}

// New creates a local wallet provider from a hex-encoded private key
func New(ctx context.Context, config Config, opts ...Option) (*Provider, error) {
	if config.PrivateKey == "" {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			"private key is required", nil)
	}
	if config.NetworkID == "" {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			"network id is required", nil)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(config.PrivateKey, "0x"))
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			fmt.Sprintf("invalid private key: %v", err), nil)
	}

	chain, err := networks.Resolve(ctx, config.NetworkID, config.RPCURL)
	if err != nil {
		return nil, err
	}

	options := &providerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	hooks := options.hooks
	if hooks == nil {
		hooks = &agentkit.SendHooks{}
	}

	receiptTimeout := config.ReceiptTimeout
	if receiptTimeout <= 0 {
		receiptTimeout = defaultReceiptTimeout
	}

	return &Provider{
		privateKey:     privateKey,
		address:        crypto.PubkeyToAddress(privateKey.PublicKey),
		network:        networks.CAIP2ForChainID(chain.ChainID),
		chain:          chain,
		hooks:          hooks,
		receiptTimeout: receiptTimeout,
	}, nil
}

// GetName returns the provider identifier
func (p *Provider) GetName() string {
	return ProviderName
}

// GetAddress returns the checksummed address derived from the key
func (p *Provider) GetAddress() string {
	return p.address.Hex()
}

// GetNetwork returns the CAIP-2 network identifier
func (p *Provider) GetNetwork() agentkit.Network {
	return p.network
}

// ChainFamily returns the chain family this provider serves
func (p *Provider) ChainFamily() string {
	return agentkit.ChainFamilyEvm
}

// GetBalance reads the wallet's native token balance in wei
func (p *Provider) GetBalance(ctx context.Context) (*big.Int, error) {
	balance, err := p.chain.Client.BalanceAt(ctx, p.address, nil)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeBalanceQuery,
			fmt.Sprintf("failed to read balance: %v", err), nil)
	}
	return balance, nil
}

// SignHash signs a raw 32-byte hash. No message prefix is applied; the
// recovery id is adjusted to the Ethereum convention (27/28).
func (p *Provider) SignHash(ctx context.Context, hash string) (string, error) {
	digest, err := hexutil.Decode(hash)
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeHashSigning,
			fmt.Sprintf("hash is not valid hex: %v", err), nil)
	}
	if len(digest) != 32 {
		return "", agentkit.NewWalletError(agentkit.ErrCodeHashSigning,
			fmt.Sprintf("hash must be 32 bytes, got %d", len(digest)), nil)
	}

	signature, err := crypto.Sign(digest, p.privateKey)
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeHashSigning,
			fmt.Sprintf("failed to sign hash: %v", err), nil)
	}
	signature[64] += 27

	return hexutil.Encode(signature), nil
}

// SignMessage signs a message with the EIP-191 personal sign prefix
func (p *Provider) SignMessage(ctx context.Context, message string) (string, error) {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	digest := crypto.Keccak256([]byte(prefixed))

	signature, err := crypto.Sign(digest, p.privateKey)
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeMessageSigning,
			fmt.Sprintf("failed to sign message: %v", err), nil)
	}
	signature[64] += 27

	return hexutil.Encode(signature), nil
}

// SignTypedData signs an EIP-712 typed data payload
func (p *Provider) SignTypedData(ctx context.Context, typedData *agentkit.TypedData) (string, error) {
	if typedData == nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeTypedDataSigning,
			"typed data is required", nil)
	}

	apiTypedData := apitypes.TypedData{
		Types:       make(apitypes.Types),
		PrimaryType: typedData.PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              typedData.Domain.Name,
			Version:           typedData.Domain.Version,
			ChainId:           (*math.HexOrDecimal256)(typedData.Domain.ChainID),
			VerifyingContract: typedData.Domain.VerifyingContract,
			Salt:              typedData.Domain.Salt,
		},
		Message: typedData.Message,
	}

	for typeName, fields := range typedData.Types {
		typedFields := make([]apitypes.Type, len(fields))
		for i, field := range fields {
			typedFields[i] = apitypes.Type{
				Name: field.Name,
				Type: field.Type,
			}
		}
		apiTypedData.Types[typeName] = typedFields
	}

	if _, exists := apiTypedData.Types["EIP712Domain"]; !exists {
		apiTypedData.Types["EIP712Domain"] = []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		}
	}

	dataHash, err := apiTypedData.HashStruct(apiTypedData.PrimaryType, apiTypedData.Message)
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeTypedDataSigning,
			fmt.Sprintf("failed to hash struct: %v", err), nil)
	}

	domainSeparator, err := apiTypedData.HashStruct("EIP712Domain", apiTypedData.Domain.Map())
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeTypedDataSigning,
			fmt.Sprintf("failed to hash domain: %v", err), nil)
	}

	// EIP-712 digest: 0x19 0x01 <domainSeparator> <dataHash>
	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	digest := crypto.Keccak256(rawData)

	signature, err := crypto.Sign(digest, p.privateKey)
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeTypedDataSigning,
			fmt.Sprintf("failed to sign typed data: %v", err), nil)
	}
	signature[64] += 27

	return hexutil.Encode(signature), nil
}

// SignTransaction signs a transaction without broadcasting it and returns
// the RLP-encoded signed transaction.
func (p *Provider) SignTransaction(ctx context.Context, tx *agentkit.TransactionRequest) (string, error) {
	signedTx, err := p.signTransaction(ctx, tx)
	if err != nil {
		return "", err
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeTransactionSigning,
			fmt.Sprintf("failed to encode transaction: %v", err), nil)
	}
	return hexutil.Encode(raw), nil
}

// SendTransaction signs the transaction locally and broadcasts it over RPC.
// Before/after/failure hooks fire around the attempt.
func (p *Provider) SendTransaction(ctx context.Context, tx *agentkit.TransactionRequest) (string, error) {
	start := time.Now()
	sendCtx := agentkit.SendContext{
		Ctx:       ctx,
		Provider:  ProviderName,
		Network:   p.network,
		Tx:        tx,
		Sponsored: false,
		Timestamp: start,
	}

	before, err := p.hooks.RunBefore(sendCtx)
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("before-send hook failed: %v", err), nil)
	}
	if before != nil && before.Abort {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("send aborted: %s", before.Reason), nil)
	}

	hash, err := p.broadcast(ctx, tx)
	if err != nil {
		failure, hookErr := p.hooks.RunOnFailure(agentkit.SendFailureContext{
			SendContext: sendCtx,
			Error:       err,
			Duration:    time.Since(start),
		})
		if hookErr == nil && failure != nil && failure.Recovered {
			return failure.TxHash, nil
		}
		return "", err
	}

	p.hooks.RunAfter(agentkit.SendResultContext{
		SendContext: sendCtx,
		TxHash:      hash,
		Duration:    time.Since(start),
	})
	return hash, nil
}

func (p *Provider) broadcast(ctx context.Context, tx *agentkit.TransactionRequest) (string, error) {
	signedTx, err := p.signTransaction(ctx, tx)
	if err != nil {
		return "", err
	}

	if err := p.chain.Client.SendTransaction(ctx, signedTx); err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("failed to broadcast transaction: %v", err), nil)
	}
	return signedTx.Hash().Hex(), nil
}

func (p *Provider) signTransaction(ctx context.Context, tx *agentkit.TransactionRequest) (*types.Transaction, error) {
	if tx == nil || tx.To == "" {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeTransactionSigning,
			"transaction destination is required", nil)
	}
	to := common.HexToAddress(tx.To)

	value, err := quantityToBig(tx.Value)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = big.NewInt(0)
	}

	var data []byte
	if tx.Data != "" && tx.Data != "0x" {
		data, err = hexutil.Decode(tx.Data)
		if err != nil {
			return nil, agentkit.NewWalletError(agentkit.ErrCodeTransactionSigning,
				fmt.Sprintf("calldata is not valid hex: %v", err), nil)
		}
	}

	nonce, err := p.chain.Client.PendingNonceAt(ctx, p.address)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeTransactionSigning,
			fmt.Sprintf("failed to fetch nonce: %v", err), nil)
	}

	gasPrice, err := p.chain.Client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeTransactionSigning,
			fmt.Sprintf("failed to fetch gas price: %v", err), nil)
	}

	gasLimit, err := p.resolveGasLimit(ctx, tx, to, value, data)
	if err != nil {
		return nil, err
	}

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(unsigned, types.LatestSignerForChainID(p.chain.BigChainID()), p.privateKey)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeTransactionSigning,
			fmt.Sprintf("failed to sign transaction: %v", err), nil)
	}
	return signedTx, nil
}

func (p *Provider) resolveGasLimit(ctx context.Context, tx *agentkit.TransactionRequest, to common.Address, value *big.Int, data []byte) (uint64, error) {
	requested, err := quantityToBig(tx.GasLimit)
	if err != nil {
		return 0, err
	}
	if requested != nil {
		return requested.Uint64(), nil
	}

	estimate, err := p.chain.Client.EstimateGas(ctx, ethereum.CallMsg{
		From:  p.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return 0, agentkit.NewWalletError(agentkit.ErrCodeTransactionSigning,
			fmt.Sprintf("failed to estimate gas: %v", err), nil)
	}
	return estimate, nil
}

// WaitForTransactionReceipt polls the chain until the transaction is mined
// or the receipt timeout elapses.
func (p *Provider) WaitForTransactionReceipt(ctx context.Context, txHash string) (*agentkit.TransactionReceipt, error) {
	receipt, err := networks.WaitMined(ctx, p.chain.Client, txHash, p.receiptTimeout, receiptPollInterval)
	if err != nil {
		return nil, err
	}
	return &agentkit.TransactionReceipt{
		Status:      receipt.Status,
		BlockNumber: receipt.BlockNumber,
		TxHash:      receipt.TxHash.Hex(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// ReadContract performs a read-only contract call and returns the decoded
// result
func (p *Provider) ReadContract(ctx context.Context, params *agentkit.ReadContractParams) (interface{}, error) {
	parsedABI, err := abi.JSON(strings.NewReader(params.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	callData, err := parsedABI.Pack(params.Method, params.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}

	contractAddress := common.HexToAddress(params.Address)
	result, err := p.chain.Client.CallContract(ctx, ethereum.CallMsg{
		To:   &contractAddress,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}

	values, err := parsedABI.Unpack(params.Method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}

	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return values[0], nil
	default:
		return values, nil
	}
}

// NativeTransfer sends the native token to a destination address and waits
// for the transaction to be mined
func (p *Provider) NativeTransfer(ctx context.Context, to string, value *big.Int) (string, error) {
	hash, err := p.SendTransaction(ctx, &agentkit.TransactionRequest{
		To:    to,
		Value: value,
	})
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeNativeTransfer,
			fmt.Sprintf("failed to send native transfer: %v", err), nil)
	}

	receipt, err := p.WaitForTransactionReceipt(ctx, hash)
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeNativeTransfer,
			fmt.Sprintf("transfer %s not confirmed: %v", hash, err), nil)
	}
	if receipt.Status == 0 {
		return "", agentkit.NewWalletError(agentkit.ErrCodeNativeTransfer,
			fmt.Sprintf("transfer %s reverted on chain", hash), nil)
	}
	return hash, nil
}

// quantityToBig normalizes a quantity and parses the canonical hex form
func quantityToBig(quantity agentkit.Quantity) (*big.Int, error) {
	normalized, err := sponsor.NormalizeQuantity(quantity)
	if err != nil {
		return nil, err
	}
	if normalized == "" {
		return nil, nil
	}
	return hexutil.DecodeBig(normalized)
}
