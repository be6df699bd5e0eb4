// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecisionAnd(t *testing.T) {
	require := require.New(t)
	require.Equal(Allow, Allow.And(Allow))
	require.Equal(Deny, Allow.And(Deny))
	require.Equal(Deny, Deny.And(Allow))
	require.Equal(Deny, Deny.And(Deny))
}

func TestDecisionOr(t *testing.T) {
	require := require.New(t)
	require.Equal(Allow, Allow.Or(Deny))
	require.Equal(Allow, Deny.Or(Allow))
	require.Equal(Allow, Allow.Or(Allow))
	require.Equal(Deny, Deny.Or(Deny))
}

func TestActionDecisionPanicsOnHook(t *testing.T) {
	action, err := HookActionFromURL("https://example.com/hook")
	require.NoError(t, err)
	require.Panics(t, func() { action.decision() })
}
