package sponsor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thirdfy/agentkit"
	"github.com/thirdfy/agentkit/custodial"
	"github.com/thirdfy/agentkit/networks"
)

// Orchestrator routes transaction submissions through the sponsorship path
// with a bounded fallback. All state is per call; nothing persists between
// calls except the client cache.
type Orchestrator struct {
	policy       *GaslessPolicy
	cache        *custodial.Cache
	clientConfig custodial.Config
	credential   agentkit.AuthorizationCredential
	authContext  *custodial.AuthorizationContext
	providerName string
	hooks        *agentkit.SendHooks

	newIdempotencyKey func() string
}

// Config configures a sponsorship orchestrator
type Config struct {
	// Policy decides per-chain eligibility
	Policy *GaslessPolicy

	// ClientConfig is passed through to client construction on cache miss
	ClientConfig custodial.Config

	// Credential is the sponsorship signing credential. Deployments without
	// a separately-scoped sponsorship key pass the default credential here.
	Credential agentkit.AuthorizationCredential

	// AuthContext optionally carries extra authorization keys attached to
	// sponsored attempts only
	AuthContext *custodial.AuthorizationContext

	// Cache memoizes clients per credential (optional; a private cache is
	// created when nil)
	Cache *custodial.Cache

	// ProviderName labels hook contexts (optional)
	ProviderName string

	// Hooks receive fallback notifications (optional)
	Hooks *agentkit.SendHooks
}

// New creates a sponsorship orchestrator
func New(config Config) *Orchestrator {
	cache := config.Cache
	if cache == nil {
		cache = custodial.NewCache()
	}

	return &Orchestrator{
		policy:            config.Policy,
		cache:             cache,
		clientConfig:      config.ClientConfig,
		credential:        config.Credential,
		authContext:       config.AuthContext,
		providerName:      config.ProviderName,
		hooks:             config.Hooks,
		newIdempotencyKey: NewIdempotencyKey,
	}
}

// Eligible reports whether gasless routing applies to a chain id
func (o *Orchestrator) Eligible(chainID int64) bool {
	return o.policy.EligibleFor(chainID)
}

// SendSponsored submits a transaction through the sponsorship path. The
// sponsored attempt runs first; if it fails with a recoverable error
// (upstream 401/403, or a missing/invalid authorization signature message)
// the call is resubmitted exactly once with sponsorship disabled. Any other
// error surfaces immediately, and a failed unsponsored retry is itself
// terminal.
func (o *Orchestrator) SendSponsored(ctx context.Context, identity agentkit.WalletIdentity, chainType string, tx *agentkit.TransactionRequest) (string, error) {
	client, err := o.cache.GetOrCreate(o.clientConfig, o.credential)
	if err != nil {
		return "", err
	}

	request, err := o.buildRequest(identity, chainType, tx, true)
	if err != nil {
		return "", err
	}

	hash, err := o.submit(ctx, client, request)
	if err == nil {
		return hash, nil
	}
	if !agentkit.IsRecoverableSponsorship(err) {
		return "", err
	}

	o.hooks.FireFallback(agentkit.FallbackContext{
		SendContext: agentkit.SendContext{
			Ctx:       ctx,
			Provider:  o.providerName,
			Network:   agentkit.Network(request.CAIP2),
			Tx:        tx,
			Sponsored: true,
			Timestamp: time.Now(),
		},
		Stage: agentkit.FallbackStageSponsorship,
		Cause: err,
	})

	request.Sponsor = false
	return o.submit(ctx, client, request)
}

func (o *Orchestrator) buildRequest(identity agentkit.WalletIdentity, chainType string, tx *agentkit.TransactionRequest, sponsor bool) (*custodial.SendTransactionRequest, error) {
	value, err := NormalizeQuantity(tx.Value)
	if err != nil {
		return nil, err
	}

	gasLimit, err := NormalizeQuantity(tx.GasLimit)
	if err != nil {
		return nil, err
	}

	data := tx.Data
	if data == "" {
		data = "0x"
	}

	return &custodial.SendTransactionRequest{
		WalletSelector: ResolveSelector(identity, chainType),
		CAIP2:          string(networks.CAIP2ForChainID(identity.ChainID)),
		Sponsor:        sponsor,
		Transaction: custodial.SponsoredTransaction{
			To:       tx.To,
			Data:     data,
			Value:    value,
			GasLimit: gasLimit,
		},
		Context: o.policy.DefaultContext(),
	}, nil
}

func (o *Orchestrator) submit(ctx context.Context, client *custodial.Client, request *custodial.SendTransactionRequest) (string, error) {
	// The authorization context applies to sponsored attempts only; each
	// attempt is a distinct submission and gets its own idempotency key.
	var authCtx *custodial.AuthorizationContext
	if request.Sponsor {
		authCtx = o.authContext
	}

	response, err := client.SendTransaction(ctx, request, authCtx, o.newIdempotencyKey())
	if err != nil {
		return "", err
	}
	if response.Data.Hash == "" {
		return "", agentkit.NewWalletError(agentkit.ErrCodeTransport,
			"sponsorship response is missing a transaction hash", nil)
	}

	return response.Data.Hash, nil
}

// NewIdempotencyKey returns a fresh idempotency key for one submission
func NewIdempotencyKey() string {
	return "idem_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
