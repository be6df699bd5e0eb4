// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashRuleMetaIsOrderIndependent(t *testing.T) {
	require := require.New(t)

	a := map[string]interface{}{"sender-address": "0x11", "transaction-gas-budget": ">=1000"}
	b := map[string]interface{}{"transaction-gas-budget": ">=1000", "sender-address": "0x11"}

	hashA, err := HashRuleMeta(a)
	require.NoError(err)
	hashB, err := HashRuleMeta(b)
	require.NoError(err)
	require.Equal(hashA, hashB)
}

func TestHashRuleMetaDistinguishesDifferentValues(t *testing.T) {
	require := require.New(t)

	a := map[string]interface{}{"sender-address": "0x11"}
	b := map[string]interface{}{"sender-address": "0x22"}

	hashA, err := HashRuleMeta(a)
	require.NoError(err)
	hashB, err := HashRuleMeta(b)
	require.NoError(err)
	require.NotEqual(hashA, hashB)
}

func TestHashRuleMetaHandlesNestedValues(t *testing.T) {
	require := require.New(t)

	nested := map[string]interface{}{
		"move-call-package-address": []interface{}{"0x11", "0x22"},
		"ptb-command-count":         ">=2",
	}
	_, err := HashRuleMeta(nested)
	require.NoError(err)
}
