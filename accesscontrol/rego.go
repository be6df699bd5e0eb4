// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/types"
	"gopkg.in/yaml.v3"
)

func init() {
	rego.RegisterBuiltin2(
		&rego.Function{
			Name: "bcs.decode_typed",
			Decl: types.NewFunction(
				types.Args(types.NewArray(nil, types.N), types.S),
				types.A,
			),
		},
		evalBCSDecodeTyped,
	)
}

// evalBCSDecodeTyped implements the bcs.decode_typed(bytes, typeTag)
// Rego builtin (spec.md §4.3): decode a byte array as the BCS encoding
// of the named scalar or vector-of-scalar type.
func evalBCSDecodeTyped(_ rego.BuiltinContext, a, b *ast.Term) (*ast.Term, error) {
	rawBytes, err := ast.JSON(a.Value)
	if err != nil {
		return nil, fmt.Errorf("bcs.decode_typed: first argument must be an array of bytes: %w", err)
	}
	items, ok := rawBytes.([]interface{})
	if !ok {
		return nil, fmt.Errorf("bcs.decode_typed: first argument must be an array of bytes")
	}
	data := make([]byte, len(items))
	for i, item := range items {
		n, ok := item.(json.Number)
		var v int64
		if ok {
			v, err = n.Int64()
		} else if f, isFloat := item.(float64); isFloat {
			v = int64(f)
		} else {
			return nil, fmt.Errorf("bcs.decode_typed: array items must be u8 values")
		}
		if err != nil || v < 0 || v > 255 {
			return nil, fmt.Errorf("bcs.decode_typed: array items must be u8 values")
		}
		data[i] = byte(v)
	}

	rawTag, err := ast.JSON(b.Value)
	if err != nil {
		return nil, fmt.Errorf("bcs.decode_typed: second argument must be a type tag string: %w", err)
	}
	typeTag, ok := rawTag.(string)
	if !ok {
		return nil, fmt.Errorf("bcs.decode_typed: second argument must be a type tag string")
	}

	decoded, err := bcsDecodeTyped(data, typeTag)
	if err != nil {
		return nil, fmt.Errorf("bcs.decode_typed: %w", err)
	}
	value, err := ast.InterfaceToValue(decoded)
	if err != nil {
		return nil, err
	}
	return ast.NewTerm(value), nil
}

// RegoPredicate is the rego_expression predicate: a Rego program fetched
// from a Source, compiled once, and evaluated against every request's
// transaction_data. Evaluation is safe for concurrent use; Initialize
// must complete (at startup and again on Reload) before any Evaluate
// call.
type RegoPredicate struct {
	source Source

	mu    sync.RWMutex
	query *rego.PreparedEvalQuery
}

func NewRegoPredicate(source Source) *RegoPredicate {
	return &RegoPredicate{source: source}
}

// Initialize fetches and compiles the predicate's Rego program.
func (p *RegoPredicate) Initialize(ctx context.Context) error {
	text, err := p.source.FetchString(ctx)
	if err != nil {
		return err
	}
	prepared, err := rego.New(
		rego.Query(p.source.RegoRulePath),
		rego.Module(p.source.String(), text),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to compile rego policy (%s): %v", ErrInvalidConfig, p.source, err)
	}
	p.mu.Lock()
	p.query = &prepared
	p.mu.Unlock()
	return nil
}

// Evaluate runs the compiled program against ctx.TransactionData and
// requires the result be a single boolean (spec.md §4.3).
func (p *RegoPredicate) Evaluate(ctx context.Context, tctx *TransactionContext) (bool, error) {
	p.mu.RLock()
	query := p.query
	p.mu.RUnlock()
	if query == nil {
		return false, fmt.Errorf("%w: rego predicate for %s", ErrPolicyUninitialized, p.source)
	}

	var txData interface{}
	if len(tctx.TransactionData) > 0 {
		if err := json.Unmarshal(tctx.TransactionData, &txData); err != nil {
			return false, fmt.Errorf("%w: transaction_data is not valid json: %v", ErrRuleEvaluation, err)
		}
	}
	input := map[string]interface{}{"transaction_data": txData}

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("%w: rego evaluation crashed: %v", ErrRuleEvaluation, err)
	}
	// An empty result set means the queried rule is undefined for this
	// input (e.g. an incomplete "allow { ... }" rule whose body didn't
	// hold) — that is a false match, not an error.
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	result, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("%w: rego rule %s", ErrPolicyMalformed, p.source.RegoRulePath)
	}
	return result, nil
}

// UnmarshalYAML decodes a rego_expression config entry, which is simply
// a Source (spec.md §6.1's rego-expression: {location-type, url, ...}).
func (p *RegoPredicate) UnmarshalYAML(value *yaml.Node) error {
	var source Source
	if err := value.Decode(&source); err != nil {
		return err
	}
	p.source = source
	return nil
}
