// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestAggregateSpecParsesSpacedDuration(t *testing.T) {
	require := require.New(t)

	var spec AggregateSpec
	doc := "window: \"1h 30m\"\nvalue: \"<=100000\"\ncount-by: [\"sender-address\"]\n"
	require.NoError(yaml.Unmarshal([]byte(doc), &spec))
	require.Equal(90*time.Minute, spec.Window)
	require.True(spec.Threshold.Matches(100000))
	require.False(spec.Threshold.Matches(100001))
	require.Equal([]PartitionKey{PartitionSenderAddress}, spec.CountBy)
}

func TestAggregateSpecRejectsUnknownPartitionKey(t *testing.T) {
	var spec AggregateSpec
	doc := "window: \"1h\"\nvalue: \"<=1\"\ncount-by: [\"recipient-address\"]\n"
	err := yaml.Unmarshal([]byte(doc), &spec)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAggregateSpecResolvedKeyMetaOnlyKnowsSenderAddress(t *testing.T) {
	require := require.New(t)
	spec := AggregateSpec{CountBy: []PartitionKey{PartitionSenderAddress}}
	tctx := &TransactionContext{SenderAddress: mustAddress(t, "0x"+strings.Repeat("33", 32))}

	meta := spec.resolvedKeyMeta(tctx)
	require.Equal(tctx.SenderAddress.String(), meta["sender-address"])
}
