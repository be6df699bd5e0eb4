// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"encoding/json"
	"net/http"
)

// RequestType mirrors the gas station's execute_tx finality-waiting mode,
// forwarded verbatim to hooks so they can make the same decision the
// caller originally asked for.
type RequestType string

const (
	RequestTypeWaitForEffectsCert    RequestType = "WaitForEffectsCert"
	RequestTypeWaitForLocalExecution RequestType = "WaitForLocalExecution"
)

// TransactionContext carries everything a rule chain needs to evaluate a
// single sponsored-transaction request. It is built once per request and
// handed unchanged to every rule, predicate and hook in the chain.
type TransactionContext struct {
	TransactionDigest string
	SenderAddress     Address

	// TransactionBudget is the gas budget requested for this transaction.
	TransactionBudget uint64
	// MoveCallPackageAddresses lists the package addresses of every Move
	// call present in the transaction's PTB.
	MoveCallPackageAddresses []Address
	// PTBCommandCount is the number of commands in the transaction's
	// programmable transaction block. Nil when the transaction kind has
	// no PTB (ptb_command_count predicates never match in that case).
	PTBCommandCount *int

	// ReservationID, TxBytes and UserSig are forwarded to hooks verbatim;
	// this package never interprets them.
	ReservationID uint64
	TxBytes       string
	UserSig       string
	RequestType   RequestType

	// Headers are the original caller's HTTP headers, forwarded to hooks.
	Headers http.Header

	// TransactionData is a JSON projection of the full parsed
	// transaction. Rego programs observe it as {"transaction_data": ...};
	// byte-array fields within it are the inputs bcs.decode_typed
	// expects its first argument to be.
	TransactionData json.RawMessage

	tracker StatsTracker
}

// StatsTracker is the sliding-window aggregate store a rule's gas_usage
// predicate bumps during match_global_limits, and the controller later
// reconciles during ConfirmTransaction. tracker.RedisStore implements
// this; this narrow interface lets tests fake the store without a Redis
// dependency and keeps this package free of a tracker import.
type StatsTracker interface {
	// UpdateAggr increments the sliding-window sum identified by
	// ruleMeta (a rule's canonical JSON fingerprint with its countBy
	// partition values resolved in) by delta and returns the new sum.
	// delta may be negative (confirmation reconciliation).
	UpdateAggr(ruleMeta map[string]interface{}, spec AggregateSpec, delta int64) (uint64, error)
}

// WithTracker returns a copy of ctx bound to the given stats tracker.
// Callers bind the tracker once per request before passing the context
// to Controller.CheckAccess.
func (ctx TransactionContext) WithTracker(t StatsTracker) *TransactionContext {
	ctx.tracker = t
	return &ctx
}
