// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, per spec.md §7. Callers match on these with
// errors.Is rather than on package-private concrete types.
var (
	// ErrInvalidConfig: the policy file could not be parsed, or a rule
	// could not be initialized (Rego compile failure, missing source).
	ErrInvalidConfig = errors.New("accesscontrol: invalid config")
	// ErrRuleEvaluation: a rule failed to evaluate (hook non-2xx, Rego
	// crash, Rego result not boolean, source-fetch failure).
	ErrRuleEvaluation = errors.New("accesscontrol: rule evaluation failed")
	// ErrHookFailed: the hook responded outside the 2xx range.
	ErrHookFailed = errors.New("accesscontrol: hook call failed")
	// ErrPolicyUninitialized: a Rego predicate was evaluated before its
	// source was loaded.
	ErrPolicyUninitialized = errors.New("accesscontrol: rego policy not initialized")
	// ErrPolicyMalformed: a Rego rule evaluated to a non-boolean value.
	ErrPolicyMalformed = errors.New("accesscontrol: rego rule did not evaluate to a boolean")
	// ErrStoreFailure: the aggregate store is unreachable or errored.
	ErrStoreFailure = errors.New("accesscontrol: aggregate store failure")
	// ErrSourceFetch: a policy source (file/HTTP/KV) could not be fetched.
	ErrSourceFetch = errors.New("accesscontrol: policy source fetch failed")
)

// RuleError reports which rule in the chain failed to evaluate and why.
// It implements errors.Is(ErrRuleEvaluation) and errors.Unwrap to the
// underlying cause.
type RuleError struct {
	RuleIndex int
	Cause     error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("accesscontrol: error evaluating rule #%d: %v", e.RuleIndex+1, e.Cause)
}

func (e *RuleError) Unwrap() error {
	return e.Cause
}

func (e *RuleError) Is(target error) bool {
	return target == ErrRuleEvaluation
}

// HookError reports a non-2xx hook response with a truncated body excerpt.
type HookError struct {
	Status      int
	BodyExcerpt string
}

const hookErrorExcerptLimit = 512

func newHookError(status int, body string) *HookError {
	if len(body) > hookErrorExcerptLimit {
		body = body[:hookErrorExcerptLimit]
	}
	return &HookError{Status: status, BodyExcerpt: body}
}

func (e *HookError) Error() string {
	return fmt.Sprintf("accesscontrol: hook call failed with status %d: %s", e.Status, e.BodyExcerpt)
}

func (e *HookError) Is(target error) bool {
	return target == ErrHookFailed
}
