// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/luxfi/log"
)

// ConfirmationResult is the outcome of a previously admitted
// transaction, as reported back by the outer RPC once execution (or
// its abandonment) is known.
type ConfirmationResult struct {
	TransactionDigest string
	// ActualGas is the gas actually consumed, nil if the transaction
	// was never broadcast (the full reservation is rolled back).
	ActualGas *uint64
}

// Controller holds the active policy and rule chain behind an
// atomically swappable pointer, plus the confirmation ledger pending
// reconciliation (spec.md §3/§4.7).
type Controller struct {
	config atomic.Pointer[Config]

	pendingMu sync.Mutex
	pending   map[string][]ConfirmationRequest

	hookClient *HookClient
}

// NewController builds a controller from cfg. Callers must call
// Initialize before the first CheckAccess.
func NewController(cfg *Config) *Controller {
	c := &Controller{
		pending:    make(map[string][]ConfirmationRequest),
		hookClient: NewHookClient(),
	}
	c.config.Store(cfg)
	return c
}

// Initialize compiles every rule's Rego program.
func (c *Controller) Initialize(ctx context.Context) error {
	return c.config.Load().Initialize(ctx)
}

// Reload constructs a fresh controller state from cfg, initializes it,
// then atomically swaps it in. Pending confirmations are untouched —
// they reconcile against the aggregate keys they were booked against,
// independent of which rule set is now active (spec.md §4.7).
func (c *Controller) Reload(ctx context.Context, cfg *Config) error {
	if err := cfg.Initialize(ctx); err != nil {
		return err
	}
	c.config.Store(cfg)
	log.Info("accesscontrol: policy reloaded", "rules", len(cfg.Rules), "access-policy", cfg.AccessPolicy)
	return nil
}

// CheckAccess evaluates the active rule chain against tctx and returns
// the resulting Decision. It fails (does not deny) on rule-evaluation
// errors; the caller is expected to map that to a 4xx/5xx response.
func (c *Controller) CheckAccess(ctx context.Context, tctx *TransactionContext) (Decision, error) {
	cfg := c.config.Load()
	if cfg.AccessPolicy == Disabled {
		return Allow, nil
	}

	for i := range cfg.Rules {
		rule := &cfg.Rules[i]

		matched, err := rule.Matches(ctx, tctx)
		if err != nil {
			return "", &RuleError{RuleIndex: i, Cause: err}
		}
		if !matched {
			continue
		}

		withinLimits, confirmReq, err := rule.MatchGlobalLimits(tctx)
		// A ConfirmationRequest is durable as soon as step 2 runs: the
		// aggregate delta it describes has already landed in the store,
		// so it must be recorded whether or not this rule (or a later
		// one) goes on to error or fall through.
		if confirmReq != nil {
			c.recordPending(tctx.TransactionDigest, []ConfirmationRequest{*confirmReq})
		}
		if err != nil {
			return "", &RuleError{RuleIndex: i, Cause: err}
		}
		if !withinLimits {
			continue
		}

		decision, noDecision, err := c.resolveAction(ctx, rule.Action, tctx)
		if err != nil {
			return "", &RuleError{RuleIndex: i, Cause: err}
		}
		if noDecision {
			continue
		}

		log.Debug("accesscontrol: rule matched", "rule", i, "digest", tctx.TransactionDigest, "decision", decision)
		return decision, nil
	}

	decision := cfg.AccessPolicy.decision()
	log.Info("accesscontrol: no rule matched, applying default policy", "digest", tctx.TransactionDigest, "access-policy", cfg.AccessPolicy, "decision", decision)
	return decision, nil
}

func (c *Controller) resolveAction(ctx context.Context, action Action, tctx *TransactionContext) (decision Decision, noDecision bool, err error) {
	if !action.IsHook() {
		return action.decision(), false, nil
	}

	resp, err := c.hookClient.Call(ctx, action.Hook(), tctx)
	if err != nil {
		return "", false, err
	}
	switch resp.Decision {
	case HookAllow:
		return Allow, false, nil
	case HookDeny:
		return Deny, false, nil
	case HookNoDecision:
		return "", true, nil
	default:
		return "", false, fmt.Errorf("%w: hook returned unknown decision %q", ErrRuleEvaluation, resp.Decision)
	}
}

func (c *Controller) recordPending(digest string, reqs []ConfirmationRequest) {
	if len(reqs) == 0 {
		return
	}
	c.pendingMu.Lock()
	c.pending[digest] = append(c.pending[digest], reqs...)
	c.pendingMu.Unlock()
}

// ConfirmTransaction reconciles a transaction's reserved-vs-actual gas
// against every aggregate it bumped during CheckAccess. It never fails
// fatally: store errors are logged and dropped (spec.md §4.7).
func (c *Controller) ConfirmTransaction(tracker StatsTracker, result ConfirmationResult) {
	c.pendingMu.Lock()
	reqs, ok := c.pending[result.TransactionDigest]
	delete(c.pending, result.TransactionDigest)
	c.pendingMu.Unlock()
	if !ok {
		return
	}

	for _, req := range reqs {
		var diff int64
		if result.ActualGas != nil {
			diff = int64(req.ReservedGas) - int64(*result.ActualGas)
		} else {
			diff = int64(req.ReservedGas)
		}
		if _, err := tracker.UpdateAggr(req.RuleMeta, req.Spec, -diff); err != nil {
			log.Warn("accesscontrol: failed to reconcile aggregate on confirmation", "digest", result.TransactionDigest, "error", err)
		}
	}
}
