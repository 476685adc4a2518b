// Package embedded implements a wallet provider whose key material lives in
// the remote custodial wallet API. Signing and sending are delegated over
// signed HTTP calls; reads go straight to the chain over RPC.
package embedded

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/thirdfy/agentkit"
	"github.com/thirdfy/agentkit/custodial"
	"github.com/thirdfy/agentkit/networks"
	"github.com/thirdfy/agentkit/sponsor"
)

// ProviderName identifies this provider in hooks and registries
const ProviderName = "embedded_wallet_provider"

const (
	defaultReceiptTimeout = 2 * time.Minute
	receiptPollInterval   = 2 * time.Second
)

// Provider is the embedded wallet facade. All state is resolved during
// construction; a half-initialized provider is never observable.
type Provider struct {
	identity       agentkit.WalletIdentity
	credential     agentkit.AuthorizationCredential
	network        agentkit.Network
	chain          *networks.Chain
	client         *custodial.Client
	orchestrator   *sponsor.Orchestrator
	hooks          *agentkit.SendHooks
	receiptTimeout time.Duration
}

var (
	_ agentkit.EvmWalletProvider = (*Provider)(nil)
	_ agentkit.Exporter          = (*Provider)(nil)
)

// Option configures optional provider behavior
type Option func(*providerOptions)

type providerOptions struct {
	hooks *agentkit.SendHooks
	cache *custodial.Cache
}

// WithSendHooks attaches lifecycle hooks to transaction sends
func WithSendHooks(hooks *agentkit.SendHooks) Option {
	return func(o *providerOptions) {
		o.hooks = hooks
	}
}

// WithClientCache shares a wallet API client cache across providers.
// Providers created without this option each hold a private cache.
func WithClientCache(cache *custodial.Cache) Option {
	return func(o *providerOptions) {
		o.cache = cache
	}
}

// New creates an embedded wallet provider in two phases: it validates the
// configuration synchronously, then makes exactly one wallet API call to
// resolve the wallet's address.
//
// Args:
//   - ctx: Context for the identity lookup
//   - config: Provider configuration
//   - opts: Optional hooks and shared caches
//
// Returns the ready provider, or an error if validation or the identity
// lookup fails.
func New(ctx context.Context, config Config, opts ...Option) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := config.applyEnvDefaults(); err != nil {
		return nil, err
	}

	chain, err := networks.Resolve(ctx, config.NetworkID, config.RPCURL)
	if err != nil {
		return nil, err
	}

	client, err := custodial.NewClient(clientConfig(config), config.credential())
	if err != nil {
		return nil, err
	}

	wallet, err := client.Wallet(ctx, config.WalletID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve wallet identity: %w", err)
	}

	return newProvider(config, chain, client, wallet.Address, opts...)
}

// FromExport reconstructs a provider from previously exported state with no
// identity lookup. The config supplies application credentials and endpoint
// overrides; wallet identity comes entirely from the export.
func FromExport(ctx context.Context, config Config, exported agentkit.ExportedWallet, opts ...Option) (*Provider, error) {
	config.WalletID = exported.WalletID
	config.EmbeddedWalletID = exported.EmbeddedWalletID
	config.AuthorizationKey = exported.AuthorizationKey
	config.AuthorizationKeyID = exported.AuthorizationKeyID
	config.NetworkID = exported.NetworkID

	if exported.Address == "" {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			"exported wallet is missing an address", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := config.applyEnvDefaults(); err != nil {
		return nil, err
	}

	chain, err := networks.Resolve(ctx, config.NetworkID, config.RPCURL)
	if err != nil {
		return nil, err
	}
	if exported.ChainID != 0 && exported.ChainID != chain.ChainID {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			fmt.Sprintf("exported chain id %d does not match network %s (%d)",
				exported.ChainID, config.NetworkID, chain.ChainID), nil)
	}

	client, err := custodial.NewClient(clientConfig(config), config.credential())
	if err != nil {
		return nil, err
	}

	return newProvider(config, chain, client, exported.Address, opts...)
}

func newProvider(config Config, chain *networks.Chain, client *custodial.Client, address string, opts ...Option) (*Provider, error) {
	options := &providerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	policy, err := sponsor.ResolvePolicy(sponsor.PolicyConfig{
		Enabled:        config.Gasless,
		ChainIDs:       config.GaslessChainIDs,
		DefaultContext: config.GaslessContext,
	})
	if err != nil {
		return nil, err
	}

	hooks := options.hooks
	if hooks == nil {
		hooks = &agentkit.SendHooks{}
	}

	var authCtx *custodial.AuthorizationContext
	if len(config.SponsorAuthorizationContext) > 0 {
		authCtx = &custodial.AuthorizationContext{KeySecrets: config.SponsorAuthorizationContext}
	}

	orchestrator := sponsor.New(sponsor.Config{
		Policy:       policy,
		ClientConfig: clientConfig(config),
		Credential:   config.sponsorCredential(),
		AuthContext:  authCtx,
		Cache:        options.cache,
		ProviderName: ProviderName,
		Hooks:        hooks,
	})

	receiptTimeout := config.ReceiptTimeout
	if receiptTimeout <= 0 {
		receiptTimeout = defaultReceiptTimeout
	}

	return &Provider{
		identity: agentkit.WalletIdentity{
			WalletID:         config.WalletID,
			EmbeddedWalletID: config.EmbeddedWalletID,
			Address:          address,
			NetworkID:        config.NetworkID,
			ChainID:          chain.ChainID,
		},
		credential:     config.credential(),
		network:        networks.CAIP2ForChainID(chain.ChainID),
		chain:          chain,
		client:         client,
		orchestrator:   orchestrator,
		hooks:          hooks,
		receiptTimeout: receiptTimeout,
	}, nil
}

func clientConfig(config Config) custodial.Config {
	return custodial.Config{
		BaseURL:    config.APIBaseURL,
		AppID:      config.AppID,
		AppSecret:  config.AppSecret,
		HTTPClient: config.HTTPClient,
	}
}

// GetName returns the provider identifier
func (p *Provider) GetName() string {
	return ProviderName
}

// GetAddress returns the wallet's checksummed address
func (p *Provider) GetAddress() string {
	return p.identity.Address
}

// GetNetwork returns the CAIP-2 network identifier
func (p *Provider) GetNetwork() agentkit.Network {
	return p.network
}

// ChainFamily returns the chain family this provider serves
func (p *Provider) ChainFamily() string {
	return agentkit.ChainFamilyEvm
}

// Identity returns the resolved wallet identity
func (p *Provider) Identity() agentkit.WalletIdentity {
	return p.identity
}

// GetBalance reads the wallet's native token balance in wei
func (p *Provider) GetBalance(ctx context.Context) (*big.Int, error) {
	balance, err := p.chain.Client.BalanceAt(ctx, common.HexToAddress(p.identity.Address), nil)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeBalanceQuery,
			fmt.Sprintf("failed to read balance: %v", err), nil)
	}
	return balance, nil
}

// SignHash signs a raw 32-byte hash with the wallet's key. The hash is
// passed through untouched; no message prefix is applied.
func (p *Provider) SignHash(ctx context.Context, hash string) (string, error) {
	resp, err := p.client.RPC(ctx, &custodial.RPCRequest{
		Address:   p.identity.Address,
		ChainType: agentkit.ChainTypeEthereum,
		Method:    custodial.MethodSecp256k1Sign,
		Params:    map[string]interface{}{"hash": hash},
	})
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeHashSigning,
			fmt.Sprintf("failed to sign hash: %v", err), nil)
	}
	return resp.Data.Signature, nil
}

// SignMessage signs a human-readable message using the EIP-191 personal
// sign scheme applied by the wallet service.
func (p *Provider) SignMessage(ctx context.Context, message string) (string, error) {
	resp, err := p.client.RPC(ctx, &custodial.RPCRequest{
		Address:   p.identity.Address,
		ChainType: agentkit.ChainTypeEthereum,
		Method:    custodial.MethodPersonalSign,
		Params: map[string]interface{}{
			"message":  message,
			"encoding": "utf-8",
		},
	})
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeMessageSigning,
			fmt.Sprintf("failed to sign message: %v", err), nil)
	}
	return resp.Data.Signature, nil
}

// SignTypedData signs an EIP-712 typed data payload. The payload is
// validated against the typed data schema before any network call.
func (p *Provider) SignTypedData(ctx context.Context, typedData *agentkit.TypedData) (string, error) {
	validation := custodial.ValidateTypedData(typedData)
	if !validation.Valid {
		return "", agentkit.NewWalletError(agentkit.ErrCodeTypedDataSigning,
			fmt.Sprintf("invalid typed data: %s", strings.Join(validation.Errors, "; ")), nil)
	}

	resp, err := p.client.RPC(ctx, &custodial.RPCRequest{
		Address:   p.identity.Address,
		ChainType: agentkit.ChainTypeEthereum,
		Method:    custodial.MethodSignTypedData,
		Params:    map[string]interface{}{"typed_data": typedData},
	})
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeTypedDataSigning,
			fmt.Sprintf("failed to sign typed data: %v", err), nil)
	}
	return resp.Data.Signature, nil
}

// SignTransaction signs a transaction without broadcasting it and returns
// the RLP-encoded signed transaction.
func (p *Provider) SignTransaction(ctx context.Context, tx *agentkit.TransactionRequest) (string, error) {
	payload, err := p.transactionPayload(tx)
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeTransactionSigning,
			fmt.Sprintf("failed to prepare transaction: %v", err), nil)
	}

	resp, err := p.client.RPC(ctx, &custodial.RPCRequest{
		Address:   p.identity.Address,
		ChainType: agentkit.ChainTypeEthereum,
		Method:    custodial.MethodSignTransaction,
		Params:    map[string]interface{}{"transaction": payload},
	})
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeTransactionSigning,
			fmt.Sprintf("failed to sign transaction: %v", err), nil)
	}
	return resp.Data.SignedTransaction, nil
}

// SendTransaction submits a transaction through the gasless pipeline when
// the wallet's chain is eligible, falling back to a plain direct send when
// the pipeline fails for any reason. Before/after/failure hooks fire around
// the whole attempt.
func (p *Provider) SendTransaction(ctx context.Context, tx *agentkit.TransactionRequest) (string, error) {
	start := time.Now()
	sendCtx := agentkit.SendContext{
		Ctx:       ctx,
		Provider:  ProviderName,
		Network:   p.network,
		Tx:        tx,
		Sponsored: p.orchestrator.Eligible(p.identity.ChainID),
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

	hash, err := p.send(ctx, sendCtx, tx)
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

func (p *Provider) send(ctx context.Context, sendCtx agentkit.SendContext, tx *agentkit.TransactionRequest) (string, error) {
	if p.orchestrator.Eligible(p.identity.ChainID) {
		hash, err := p.orchestrator.SendSponsored(ctx, p.identity, agentkit.ChainTypeEthereum, tx)
		if err == nil {
			return hash, nil
		}
		// Any error escaping the gasless pipeline, recoverable or not,
		// lands on the plain direct send.
		p.hooks.FireFallback(agentkit.FallbackContext{
			SendContext: sendCtx,
			Stage:       agentkit.FallbackStageDirect,
			Cause:       err,
		})
	}
	return p.sendDirect(ctx, tx)
}

func (p *Provider) sendDirect(ctx context.Context, tx *agentkit.TransactionRequest) (string, error) {
	payload, err := p.transactionPayload(tx)
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("failed to prepare transaction: %v", err), nil)
	}

	resp, err := p.client.RPC(ctx, &custodial.RPCRequest{
		Address:   p.identity.Address,
		ChainType: agentkit.ChainTypeEthereum,
		Method:    custodial.MethodSendTransaction,
		Params: map[string]interface{}{
			"transaction": payload,
			"caip2":       string(p.network),
		},
	})
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("failed to send transaction: %v", err), nil)
	}
	if resp.Data.Hash == "" {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			"wallet api response is missing a transaction hash", nil)
	}
	return resp.Data.Hash, nil
}

// transactionPayload normalizes a transaction request into the wire shape
// the wallet api expects. Value and gas limit accept any supported numeric
// representation and are normalized to canonical hex.
func (p *Provider) transactionPayload(tx *agentkit.TransactionRequest) (map[string]interface{}, error) {
	value, err := sponsor.NormalizeQuantity(tx.Value)
	if err != nil {
		return nil, err
	}
	gasLimit, err := sponsor.NormalizeQuantity(tx.GasLimit)
	if err != nil {
		return nil, err
	}

	data := tx.Data
	if data == "" {
		data = "0x"
	}

	payload := map[string]interface{}{
		"to":       tx.To,
		"data":     data,
		"chain_id": p.identity.ChainID,
	}
	if value != "" {
		payload["value"] = value
	}
	if gasLimit != "" {
		payload["gas_limit"] = gasLimit
	}
	return payload, nil
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
// result. Single outputs unwrap to the bare value; multiple outputs return
// as a slice.
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
// for the transaction to be mined.
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

// ExportWallet returns the state needed to reconstruct this provider later
// without an identity lookup. The export contains the authorization key
// secret; treat it like a credential.
func (p *Provider) ExportWallet() agentkit.ExportedWallet {
	return agentkit.ExportedWallet{
		WalletID:           p.identity.WalletID,
		EmbeddedWalletID:   p.identity.EmbeddedWalletID,
		Address:            p.identity.Address,
		AuthorizationKey:   p.credential.KeySecret,
		AuthorizationKeyID: p.credential.KeyID,
		NetworkID:          p.identity.NetworkID,
		ChainID:            p.identity.ChainID,
	}
}
