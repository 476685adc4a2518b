package agentkit

import (
	"context"
	"time"
)

// ============================================================================
// Send Lifecycle Hook Context Types
// ============================================================================

// SendContext contains information passed to send hooks
type SendContext struct {
	Ctx       context.Context
	Provider  string
	Network   Network
	Tx        *TransactionRequest
	Sponsored bool
	Timestamp time.Time
}

// SendResultContext contains a send operation result and context
type SendResultContext struct {
	SendContext
	TxHash   string
	Duration time.Duration
}

// SendFailureContext contains a send operation failure and context
type SendFailureContext struct {
	SendContext
	Error    error
	Duration time.Duration
}

// Fallback stages reported through FallbackContext.Stage
const (
	// FallbackStageSponsorship is the orchestrator's inner retry: the
	// sponsored attempt failed recoverably and was resubmitted unsponsored.
	FallbackStageSponsorship = "sponsorship"

	// FallbackStageDirect is the provider's outer safety net: the gasless
	// pipeline failed entirely and the transaction was sent directly.
	FallbackStageDirect = "direct"
)

// FallbackContext describes a gasless-to-direct fallback event. A fallback
// is invisible in the return value on success, so this is the only place
// consumers can observe that one happened.
type FallbackContext struct {
	SendContext
	Stage string
	Cause error
}

// ============================================================================
// Send Lifecycle Hook Result Types
// ============================================================================

// BeforeHookResult represents the result of a "before" hook
// If Abort is true, the operation will be aborted with the given Reason
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// SendFailureHookResult represents the result of a send failure hook
// If Recovered is true, the hook has recovered from the failure with the
// given transaction hash
type SendFailureHookResult struct {
	Recovered bool
	TxHash    string
}

// ============================================================================
// Send Lifecycle Hook Function Types
// ============================================================================

// BeforeSendHook is called before a transaction is submitted
// If it returns a result with Abort=true, the send is skipped and an error
// with the provided reason is returned
type BeforeSendHook func(SendContext) (*BeforeHookResult, error)

// AfterSendHook is called after a successful submission
// Any error returned is ignored and does not affect the send result
type AfterSendHook func(SendResultContext) error

// OnSendFailureHook is called when a submission fails
// If it returns a result with Recovered=true, the provided transaction hash
// is returned instead of the error
type OnSendFailureHook func(SendFailureContext) (*SendFailureHookResult, error)

// OnFallbackHook is called when a sponsored send falls back to an
// unsponsored path. Purely observational; the return value of the send is
// unaffected.
type OnFallbackHook func(FallbackContext)

// SendHooks groups registered send lifecycle hooks so providers and the
// sponsorship orchestrator can share one registration surface
type SendHooks struct {
	Before     []BeforeSendHook
	After      []AfterSendHook
	OnFailure  []OnSendFailureHook
	OnFallback []OnFallbackHook
}

// FireFallback invokes every registered fallback hook
func (h *SendHooks) FireFallback(fc FallbackContext) {
	if h == nil {
		return
	}
	for _, hook := range h.OnFallback {
		hook(fc)
	}
}

// RunBefore invokes before hooks in order, stopping at the first abort or
// error
func (h *SendHooks) RunBefore(sc SendContext) (*BeforeHookResult, error) {
	if h == nil {
		return nil, nil
	}
	for _, hook := range h.Before {
		result, err := hook(sc)
		if err != nil {
			return nil, err
		}
		if result != nil && result.Abort {
			return result, nil
		}
	}
	return nil, nil
}

// RunAfter invokes after hooks; hook errors are ignored
func (h *SendHooks) RunAfter(rc SendResultContext) {
	if h == nil {
		return
	}
	for _, hook := range h.After {
		_ = hook(rc)
	}
}

// RunOnFailure invokes failure hooks, returning the first recovery
func (h *SendHooks) RunOnFailure(fc SendFailureContext) (*SendFailureHookResult, error) {
	if h == nil {
		return nil, nil
	}
	for _, hook := range h.OnFailure {
		result, err := hook(fc)
		if err != nil {
			continue
		}
		if result != nil && result.Recovered {
			return result, nil
		}
	}
	return nil, nil
}
