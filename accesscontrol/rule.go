// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"context"
	"fmt"
	"net/url"

	"gopkg.in/yaml.v3"
)

type actionKind int

const (
	actionAllow actionKind = iota
	actionDeny
	actionHook
)

// Action is the untagged allow/deny/hook-URL union from spec.md §3: a
// bare "allow" or "deny" string, a bare URL string, or a {url, headers}
// map all decode into one of these three shapes.
type Action struct {
	kind actionKind
	hook HookAction
}

func AllowAction() Action { return Action{kind: actionAllow} }
func DenyAction() Action  { return Action{kind: actionDeny} }

func HookActionFromURL(rawURL string) (Action, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Action{}, fmt.Errorf("%w: invalid hook url %q: %v", ErrInvalidConfig, rawURL, err)
	}
	return Action{kind: actionHook, hook: HookAction{URL: u}}, nil
}

// IsHook reports whether this action delegates to an external hook.
func (a Action) IsHook() bool { return a.kind == actionHook }

// Hook returns the hook configuration. Callers must only call this when
// IsHook reports true.
func (a Action) Hook() HookAction { return a.hook }

type hookActionDetailed struct {
	URL     string              `yaml:"url"`
	Headers map[string][]string `yaml:"headers"`
}

func (a *Action) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		switch s {
		case "allow":
			*a = AllowAction()
			return nil
		case "deny":
			*a = DenyAction()
			return nil
		default:
			action, err := HookActionFromURL(s)
			if err != nil {
				return err
			}
			*a = action
			return nil
		}
	}

	var detailed hookActionDetailed
	if err := value.Decode(&detailed); err != nil {
		return fmt.Errorf("%w: action must be \"allow\", \"deny\", a hook URL, or {url, headers}: %v", ErrInvalidConfig, err)
	}
	action, err := HookActionFromURL(detailed.URL)
	if err != nil {
		return err
	}
	action.hook.Headers = detailed.Headers
	*a = action
	return nil
}

func (a Action) MarshalYAML() (interface{}, error) {
	switch a.kind {
	case actionAllow:
		return "allow", nil
	case actionDeny:
		return "deny", nil
	default:
		if len(a.hook.Headers) == 0 {
			return a.hook.URL.String(), nil
		}
		return hookActionDetailed{URL: a.hook.URL.String(), Headers: a.hook.Headers}, nil
	}
}

// Rule is a single entry in the access-control chain: a composite
// predicate over the transaction context plus the action to take when
// every predicate matches (spec.md §3/§4.6).
type Rule struct {
	SenderAddress          AddressSet         `yaml:"sender-address"`
	TransactionGasBudget   *NumericComparator `yaml:"transaction-gas-budget,omitempty"`
	MoveCallPackageAddress *AddressSet        `yaml:"move-call-package-address,omitempty"`
	PTBCommandCount        *NumericComparator `yaml:"ptb-command-count,omitempty"`
	GasUsage               *AggregateSpec     `yaml:"gas-usage,omitempty"`
	RegoExpression         *RegoPredicate     `yaml:"rego-expression,omitempty"`

	Action Action `yaml:"action"`
}

// ConfirmationRequest is the deferred reconciliation record a rule with
// gas_usage emits on every static-predicate match, regardless of whether
// the threshold was crossed (spec.md §4.6/§5).
type ConfirmationRequest struct {
	RuleMeta    map[string]interface{}
	Spec        AggregateSpec
	ReservedGas uint64
}

// Matches evaluates this rule's static predicates and, last, its Rego
// expression (the most expensive predicate, evaluated only once
// everything cheaper has already agreed — spec.md §9).
func (r *Rule) Matches(ctx context.Context, tctx *TransactionContext) (bool, error) {
	if !r.SenderAddress.Includes(tctx.SenderAddress) {
		return false, nil
	}
	if r.TransactionGasBudget != nil && !r.TransactionGasBudget.Matches(tctx.TransactionBudget) {
		return false, nil
	}
	if r.MoveCallPackageAddress != nil && !r.MoveCallPackageAddress.IncludesAny(tctx.MoveCallPackageAddresses) {
		return false, nil
	}
	if r.PTBCommandCount != nil {
		if tctx.PTBCommandCount == nil {
			return false, nil
		}
		if !r.PTBCommandCount.Matches(uint64(*tctx.PTBCommandCount)) {
			return false, nil
		}
	}
	if r.RegoExpression != nil {
		ok, err := r.RegoExpression.Evaluate(ctx, tctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// MatchGlobalLimits is step 2 of rule evaluation: bump the gas_usage
// aggregate (if any) and report whether the resulting sum is within
// threshold, alongside the ConfirmationRequest needed to reconcile this
// booking once the transaction's outcome is known.
func (r *Rule) MatchGlobalLimits(tctx *TransactionContext) (bool, *ConfirmationRequest, error) {
	if r.GasUsage == nil {
		return true, nil, nil
	}
	if tctx.tracker == nil {
		return false, nil, fmt.Errorf("%w: no stats tracker configured for a rule with gas_usage", ErrRuleEvaluation)
	}

	meta := r.canonicalMeta(tctx)
	newSum, err := tctx.tracker.UpdateAggr(meta, *r.GasUsage, int64(tctx.TransactionBudget))
	if err != nil {
		return false, nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	req := &ConfirmationRequest{RuleMeta: meta, Spec: *r.GasUsage, ReservedGas: tctx.TransactionBudget}
	return r.GasUsage.Threshold.Matches(newSum), req, nil
}

// canonicalMeta builds the JSON-serializable fingerprint of this rule's
// matching fields, with any countBy partition keys resolved against
// tctx. It is hashed (canonical.go) to derive the aggregate store's key,
// so two rules with identical predicates but different gas_usage specs
// never collide, and the same rule always revisits the same bucket.
func (r *Rule) canonicalMeta(tctx *TransactionContext) map[string]interface{} {
	meta := map[string]interface{}{}
	meta["sender-address"], _ = r.SenderAddress.MarshalYAML()
	if r.TransactionGasBudget != nil {
		meta["transaction-gas-budget"] = r.TransactionGasBudget.String()
	}
	if r.MoveCallPackageAddress != nil {
		meta["move-call-package-address"], _ = r.MoveCallPackageAddress.MarshalYAML()
	}
	if r.PTBCommandCount != nil {
		meta["ptb-command-count"] = r.PTBCommandCount.String()
	}
	if r.GasUsage != nil {
		meta["gas-usage"], _ = r.GasUsage.MarshalYAML()
		for k, v := range r.GasUsage.resolvedKeyMeta(tctx) {
			meta[k] = v
		}
	}
	return meta
}
