// Package svm implements the embedded wallet provider for Solana clusters.
// Signing is delegated to the wallet API with chain type "solana"; balance
// reads and confirmation polling go straight to the cluster over RPC.
package svm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/thirdfy/agentkit"
	"github.com/thirdfy/agentkit/custodial"
	"github.com/thirdfy/agentkit/networks"
	"github.com/thirdfy/agentkit/sponsor"
)

// ProviderName identifies this provider in hooks and registries
const ProviderName = "embedded_solana_wallet_provider"

const (
	defaultConfirmTimeout = 2 * time.Minute
	confirmPollInterval   = 2 * time.Second
)

// Config configures an embedded Solana wallet provider
type Config struct {
	// WalletID identifies the custodial wallet (required)
	WalletID string

	// EmbeddedWalletID identifies the embedded-wallet instance when known
	// (optional)
	EmbeddedWalletID string

	// AppID and AppSecret authenticate the calling application (required)
	AppID     string
	AppSecret string

	// AuthorizationKey is the request-signing key secret (required)
	AuthorizationKey string

	// AuthorizationKeyID is attached to outbound calls when set (optional)
	AuthorizationKeyID string

	// Cluster is the Solana cluster alias, e.g. "mainnet-beta" or "devnet"
	// (required)
	Cluster string

	// RPCURL overrides the cluster's default RPC endpoint (optional)
	RPCURL string

	// APIBaseURL overrides the wallet API endpoint (optional; falls back to
	// THIRDFY_API_URL, then the production default)
	APIBaseURL string

	// HTTPClient overrides the wallet API transport (optional)
	HTTPClient *http.Client

	// ConfirmTimeout bounds confirmation polling (optional, defaults to 2
	// minutes)
	ConfirmTimeout time.Duration
}

type envConfig struct {
	APIBaseURL string `env:"THIRDFY_API_URL"`
}

func (c *Config) validate() error {
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
	case c.Cluster == "":
		missing = "cluster"
	}
	if missing != "" {
		return agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			fmt.Sprintf("%s is required", missing), nil)
	}
	return nil
}

func (c *Config) applyEnvDefaults() error {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			fmt.Sprintf("failed to parse environment defaults: %v", err), nil)
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = envCfg.APIBaseURL
	}
	return nil
}

// Provider is the Solana embedded wallet facade
type Provider struct {
	identity       agentkit.WalletIdentity
	credential     agentkit.AuthorizationCredential
	network        agentkit.Network
	owner          solana.PublicKey
	client         *custodial.Client
	rpcClient      *rpc.Client
	hooks          *agentkit.SendHooks
	confirmTimeout time.Duration
}

var (
	_ agentkit.SvmWalletProvider = (*Provider)(nil)
	_ agentkit.Exporter          = (*Provider)(nil)
)

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

// New creates a Solana embedded wallet provider. Configuration is validated
// synchronously, then exactly one wallet API call resolves the wallet's
// address.
func New(ctx context.Context, config Config, opts ...Option) (*Provider, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if err := config.applyEnvDefaults(); err != nil {
		return nil, err
	}

	client, err := custodial.NewClient(clientConfig(config), agentkit.AuthorizationCredential{
		KeySecret: config.AuthorizationKey,
		KeyID:     config.AuthorizationKeyID,
	})
	if err != nil {
		return nil, err
	}

	wallet, err := client.Wallet(ctx, config.WalletID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve wallet identity: %w", err)
	}

	return newProvider(config, client, wallet.Address, opts...)
}

// FromExport reconstructs a provider from previously exported state with no
// identity lookup
func FromExport(ctx context.Context, config Config, exported agentkit.ExportedWallet, opts ...Option) (*Provider, error) {
	config.WalletID = exported.WalletID
	config.EmbeddedWalletID = exported.EmbeddedWalletID
	config.AuthorizationKey = exported.AuthorizationKey
	config.AuthorizationKeyID = exported.AuthorizationKeyID
	config.Cluster = exported.NetworkID

	if exported.Address == "" {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			"exported wallet is missing an address", nil)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	if err := config.applyEnvDefaults(); err != nil {
		return nil, err
	}

	client, err := custodial.NewClient(clientConfig(config), agentkit.AuthorizationCredential{
		KeySecret: config.AuthorizationKey,
		KeyID:     config.AuthorizationKeyID,
	})
	if err != nil {
		return nil, err
	}

	return newProvider(config, client, exported.Address, opts...)
}

func newProvider(config Config, client *custodial.Client, address string, opts ...Option) (*Provider, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeConfiguration,
			fmt.Sprintf("wallet address is not a valid public key: %v", err), nil)
	}

	rpcURL, err := networks.SolanaRPCURL(config.Cluster, config.RPCURL)
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

	confirmTimeout := config.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}

	return &Provider{
		identity: agentkit.WalletIdentity{
			WalletID:         config.WalletID,
			EmbeddedWalletID: config.EmbeddedWalletID,
			Address:          address,
			NetworkID:        config.Cluster,
		},
		credential: agentkit.AuthorizationCredential{
			KeySecret: config.AuthorizationKey,
			KeyID:     config.AuthorizationKeyID,
		},
		network:        networks.SolanaCAIP2(config.Cluster),
		owner:          owner,
		client:         client,
		rpcClient:      rpc.New(rpcURL),
		hooks:          hooks,
		confirmTimeout: confirmTimeout,
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

// GetAddress returns the wallet's base58 public key
func (p *Provider) GetAddress() string {
	return p.identity.Address
}

// GetNetwork returns the CAIP-2 network identifier
func (p *Provider) GetNetwork() agentkit.Network {
	return p.network
}

// ChainFamily returns the chain family this provider serves
func (p *Provider) ChainFamily() string {
	return agentkit.ChainFamilySvm
}

// GetBalance reads the wallet's balance in lamports
func (p *Provider) GetBalance(ctx context.Context) (*big.Int, error) {
	out, err := p.rpcClient.GetBalance(ctx, p.owner, rpc.CommitmentFinalized)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeBalanceQuery,
			fmt.Sprintf("failed to read balance: %v", err), nil)
	}
	return new(big.Int).SetUint64(out.Value), nil
}

// GetTokenBalance reads the wallet's SPL token balance in base units. A
// missing associated token account reads as zero.
func (p *Provider) GetTokenBalance(ctx context.Context, mint string) (*big.Int, error) {
	mintPubkey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeBalanceQuery,
			fmt.Sprintf("invalid mint address: %v", err), nil)
	}

	mintAccount, err := p.rpcClient.GetAccountInfo(ctx, mintPubkey)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeBalanceQuery,
			fmt.Sprintf("failed to get mint account: %v", err), nil)
	}
	programID := mintAccount.Value.Owner
	if programID != solana.TokenProgramID && programID != solana.Token2022ProgramID {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeBalanceQuery,
			"mint was not created by a known token program", nil)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(p.owner, mintPubkey)
	if err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeBalanceQuery,
			fmt.Sprintf("failed to derive token account: %v", err), nil)
	}

	tokenAccount, err := p.rpcClient.GetAccountInfo(ctx, ata)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return big.NewInt(0), nil
		}
		return nil, agentkit.NewWalletError(agentkit.ErrCodeBalanceQuery,
			fmt.Sprintf("failed to get token account: %v", err), nil)
	}
	if tokenAccount == nil || tokenAccount.Value == nil {
		return big.NewInt(0), nil
	}

	var account token.Account
	if err := bin.NewBinDecoder(tokenAccount.Value.Data.GetBinary()).Decode(&account); err != nil {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeBalanceQuery,
			fmt.Sprintf("failed to decode token account: %v", err), nil)
	}
	if account.Mint != mintPubkey {
		return nil, agentkit.NewWalletError(agentkit.ErrCodeBalanceQuery,
			"token account does not belong to the requested mint", nil)
	}

	return new(big.Int).SetUint64(account.Amount), nil
}

// SignMessage signs a message with the wallet's Ed25519 key. The message is
// transported base64-encoded.
func (p *Provider) SignMessage(ctx context.Context, message string) (string, error) {
	resp, err := p.client.RPC(ctx, &custodial.RPCRequest{
		Address:   p.identity.Address,
		ChainType: agentkit.ChainTypeSolana,
		Method:    custodial.MethodSolanaSignMessage,
		Params: map[string]interface{}{
			"message":  base64.StdEncoding.EncodeToString([]byte(message)),
			"encoding": "base64",
		},
	})
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeMessageSigning,
			fmt.Sprintf("failed to sign message: %v", err), nil)
	}
	return resp.Data.Signature, nil
}

// SignTransaction signs a base64-encoded serialized transaction and returns
// the signed transaction, base64-encoded
func (p *Provider) SignTransaction(ctx context.Context, encodedTx string) (string, error) {
	resp, err := p.client.RPC(ctx, &custodial.RPCRequest{
		Address:   p.identity.Address,
		ChainType: agentkit.ChainTypeSolana,
		Method:    custodial.MethodSolanaSignTransaction,
		Params: map[string]interface{}{
			"transaction": encodedTx,
			"encoding":    "base64",
		},
	})
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeTransactionSigning,
			fmt.Sprintf("failed to sign transaction: %v", err), nil)
	}
	return resp.Data.SignedTransaction, nil
}

// SendTransaction builds a system transfer from the request, then signs and
// submits it through the wallet API. Calldata has no Solana equivalent;
// requests carrying it are rejected.
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

	signature, err := p.sendTransfer(ctx, tx)
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
		TxHash:      signature,
		Duration:    time.Since(start),
	})
	return signature, nil
}

func (p *Provider) sendTransfer(ctx context.Context, tx *agentkit.TransactionRequest) (string, error) {
	if tx == nil || tx.To == "" {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			"transaction destination is required", nil)
	}
	if tx.Data != "" && tx.Data != "0x" {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			"calldata is not supported on solana; sign a serialized transaction instead", nil)
	}

	recipient, err := solana.PublicKeyFromBase58(tx.To)
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("invalid recipient address: %v", err), nil)
	}

	lamports, err := quantityToLamports(tx.Value)
	if err != nil {
		return "", err
	}

	blockhash, err := p.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("failed to get latest blockhash: %v", err), nil)
	}

	transfer := system.NewTransferInstruction(lamports, p.owner, recipient).Build()

	built, err := solana.NewTransactionBuilder().
		AddInstruction(transfer).
		SetRecentBlockHash(blockhash.Value.Blockhash).
		SetFeePayer(p.owner).
		Build()
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("failed to build transaction: %v", err), nil)
	}

	encoded, err := built.ToBase64()
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("failed to encode transaction: %v", err), nil)
	}

	resp, err := p.client.RPC(ctx, &custodial.RPCRequest{
		Address:   p.identity.Address,
		ChainType: agentkit.ChainTypeSolana,
		Method:    custodial.MethodSolanaSignAndSend,
		Params: map[string]interface{}{
			"transaction": encoded,
			"encoding":    "base64",
			"caip2":       string(p.network),
		},
	})
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("failed to send transaction: %v", err), nil)
	}
	if resp.Data.Hash == "" {
		return "", agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			"wallet api response is missing a transaction signature", nil)
	}
	return resp.Data.Hash, nil
}

// NativeTransfer sends lamports to a recipient and waits for the transfer
// to confirm
func (p *Provider) NativeTransfer(ctx context.Context, to string, value *big.Int) (string, error) {
	signature, err := p.SendTransaction(ctx, &agentkit.TransactionRequest{
		To:    to,
		Value: value,
	})
	if err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeNativeTransfer,
			fmt.Sprintf("failed to send native transfer: %v", err), nil)
	}

	if err := p.waitForConfirmation(ctx, signature); err != nil {
		return "", agentkit.NewWalletError(agentkit.ErrCodeNativeTransfer,
			fmt.Sprintf("transfer %s not confirmed: %v", signature, err), nil)
	}
	return signature, nil
}

func (p *Provider) waitForConfirmation(ctx context.Context, signature string) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return agentkit.NewWalletError(agentkit.ErrCodeTransport,
			fmt.Sprintf("wallet api returned an invalid signature: %v", err), nil)
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		statuses, err := p.rpcClient.GetSignatureStatuses(waitCtx, true, sig)
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
					fmt.Sprintf("transaction %s failed on chain: %v", signature, status.Err), nil)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("timed out waiting for confirmation of %s: %w", signature, waitCtx.Err())
		case <-ticker.C:
		}
	}
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
	}
}

// quantityToLamports normalizes a quantity and bounds it to uint64
func quantityToLamports(quantity agentkit.Quantity) (uint64, error) {
	normalized, err := sponsor.NormalizeQuantity(quantity)
	if err != nil {
		return 0, err
	}
	if normalized == "" {
		return 0, nil
	}

	amount, ok := new(big.Int).SetString(normalized[2:], 16)
	if !ok {
		return 0, agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("unparseable amount %q", normalized), nil)
	}
	if !amount.IsUint64() {
		return 0, agentkit.NewWalletError(agentkit.ErrCodeSendTransaction,
			fmt.Sprintf("amount %s overflows lamports", normalized), nil)
	}
	return amount.Uint64(), nil
}
