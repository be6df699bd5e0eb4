// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Policy is the default fallback applied when no rule in the chain
// matches a transaction.
type Policy string

const (
	// Disabled short-circuits evaluation: check_access always returns
	// Allow and no rule is evaluated.
	Disabled Policy = "disabled"
	// AllowAll allows any transaction that no rule claimed.
	AllowAll Policy = "allow-all"
	// DenyAll denies any transaction that no rule claimed.
	DenyAll Policy = "deny-all"
)

// decision maps the default policy to a terminal Decision. Disabled is
// only ever consulted here for completeness; Controller.CheckAccess
// short-circuits before reaching it.
func (p Policy) decision() Decision {
	switch p {
	case AllowAll, Disabled:
		return Allow
	case DenyAll:
		return Deny
	default:
		return Deny
	}
}

func (p Policy) validate() error {
	switch p {
	case Disabled, AllowAll, DenyAll, "":
		return nil
	default:
		return fmt.Errorf("%w: unknown access-policy %q", ErrInvalidConfig, p)
	}
}

// UnmarshalYAML accepts the kebab-case policy strings from spec.md §6.1
// and defaults an empty value to Disabled. A missing access-policy key
// never reaches this method; ParseConfig defaults it to Disabled.
func (p *Policy) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*p = Disabled
		return nil
	}
	policy := Policy(s)
	if err := policy.validate(); err != nil {
		return err
	}
	*p = policy
	return nil
}

func (p Policy) MarshalYAML() (interface{}, error) {
	if p == "" {
		return string(Disabled), nil
	}
	return string(p), nil
}
