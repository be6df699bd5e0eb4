// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newController(t *testing.T, cfg *Config) *Controller {
	t.Helper()
	c := NewController(cfg)
	require.NoError(t, c.Initialize(context.Background()))
	return c
}

func TestControllerCheckAccessDisabledAlwaysAllows(t *testing.T) {
	c := newController(t, &Config{AccessPolicy: Disabled, Rules: []Rule{
		{SenderAddress: AllAddresses(), Action: DenyAction()},
	}})

	decision, err := c.CheckAccess(context.Background(), &TransactionContext{SenderAddress: testSender(t)})
	require.NoError(t, err)
	require.Equal(t, Allow, decision)
}

func TestControllerCheckAccessFirstMatchWins(t *testing.T) {
	require := require.New(t)
	sender := testSender(t)
	c := newController(t, &Config{
		AccessPolicy: AllowAll,
		Rules: []Rule{
			{SenderAddress: NewAddressSet(sender), Action: DenyAction()},
			{SenderAddress: AllAddresses(), Action: AllowAction()},
		},
	})

	decision, err := c.CheckAccess(context.Background(), &TransactionContext{SenderAddress: sender})
	require.NoError(err)
	require.Equal(Deny, decision)
}

func TestControllerCheckAccessFallsBackToDefaultPolicy(t *testing.T) {
	require := require.New(t)
	sender := testSender(t)
	other := mustAddress(t, "0x"+strings.Repeat("cc", 32))
	c := newController(t, &Config{
		AccessPolicy: DenyAll,
		Rules: []Rule{
			{SenderAddress: NewAddressSet(sender), Action: AllowAction()},
		},
	})

	decision, err := c.CheckAccess(context.Background(), &TransactionContext{SenderAddress: other})
	require.NoError(err)
	require.Equal(Deny, decision)
}

func TestControllerCheckAccessRuleWithGasUsageOverThresholdFallsThrough(t *testing.T) {
	require := require.New(t)
	sender := testSender(t)
	threshold, err := NewNumericComparator("<=", 1000)
	require.NoError(err)

	c := newController(t, &Config{
		AccessPolicy: DenyAll,
		Rules: []Rule{
			{
				SenderAddress: NewAddressSet(sender),
				GasUsage:      &AggregateSpec{Threshold: threshold, CountBy: []PartitionKey{PartitionSenderAddress}},
				Action:        AllowAction(),
			},
		},
	})

	tctx := TransactionContext{SenderAddress: sender, TransactionBudget: 2000}.WithTracker(newFakeTracker())
	decision, err := c.CheckAccess(context.Background(), tctx)
	require.NoError(err)
	require.Equal(Deny, decision, "gas_usage over threshold should fall through to the default policy")
}

func TestControllerCheckAccessHookDeny(t *testing.T) {
	require := require.New(t)
	sender := testSender(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(executeTxOkResponse{Decision: HookDeny})
	}))
	defer server.Close()
	hook, err := HookActionFromURL(server.URL)
	require.NoError(err)

	c := newController(t, &Config{
		AccessPolicy: AllowAll,
		Rules: []Rule{
			{SenderAddress: NewAddressSet(sender), Action: hook},
		},
	})

	decision, err := c.CheckAccess(context.Background(), &TransactionContext{SenderAddress: sender})
	require.NoError(err)
	require.Equal(Deny, decision)
}

func TestControllerCheckAccessHookNoDecisionFallsThrough(t *testing.T) {
	require := require.New(t)
	sender := testSender(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(executeTxOkResponse{Decision: HookNoDecision})
	}))
	defer server.Close()
	hook, err := HookActionFromURL(server.URL)
	require.NoError(err)

	c := newController(t, &Config{
		AccessPolicy: AllowAll,
		Rules: []Rule{
			{SenderAddress: NewAddressSet(sender), Action: hook},
		},
	})

	decision, err := c.CheckAccess(context.Background(), &TransactionContext{SenderAddress: sender})
	require.NoError(err)
	require.Equal(Allow, decision, "noDecision should fall through to the default policy")
}

func TestControllerConfirmTransactionReconcilesReservation(t *testing.T) {
	require := require.New(t)
	sender := testSender(t)
	threshold, err := NewNumericComparator("<=", 1000000)
	require.NoError(err)

	c := newController(t, &Config{
		AccessPolicy: DenyAll,
		Rules: []Rule{
			{
				SenderAddress: NewAddressSet(sender),
				GasUsage:      &AggregateSpec{Threshold: threshold, CountBy: []PartitionKey{PartitionSenderAddress}},
				Action:        AllowAction(),
			},
		},
	})

	tracker := newFakeTracker()
	tctx := TransactionContext{TransactionDigest: "tx1", SenderAddress: sender, TransactionBudget: 1000}.WithTracker(tracker)
	decision, err := c.CheckAccess(context.Background(), tctx)
	require.NoError(err)
	require.Equal(Allow, decision)

	var sum int64
	for _, v := range tracker.sums {
		sum = v
	}
	require.Equal(int64(1000), sum)

	actual := uint64(400)
	c.ConfirmTransaction(tracker, ConfirmationResult{TransactionDigest: "tx1", ActualGas: &actual})

	sum = 0
	for _, v := range tracker.sums {
		sum = v
	}
	require.Equal(int64(400), sum, "reconciliation should roll back the unused 600 units of the reservation")
}

func TestControllerConfirmTransactionUnknownDigestIsNoop(t *testing.T) {
	c := newController(t, &Config{AccessPolicy: AllowAll})
	c.ConfirmTransaction(newFakeTracker(), ConfirmationResult{TransactionDigest: "never-seen"})
}
