// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PartitionKey names a TransactionContext field an AggregateSpec's
// countBy can partition on. Today only SenderAddress is recognized
// (spec.md §3).
type PartitionKey string

const PartitionSenderAddress PartitionKey = "sender-address"

func (k PartitionKey) validate() error {
	switch k {
	case PartitionSenderAddress:
		return nil
	default:
		return fmt.Errorf("%w: unknown count-by partition key %q", ErrInvalidConfig, k)
	}
}

// AggregateSpec describes a sliding-window gas-usage limit: the window
// duration, the threshold comparator, and which context fields partition
// the counter.
type AggregateSpec struct {
	Window    time.Duration
	Threshold NumericComparator
	CountBy   []PartitionKey
}

// resolvedKeyMeta returns the (field, value) partition values for
// this spec against ctx, used to build the rule's aggregate key meta
// (spec.md §4.6).
func (a AggregateSpec) resolvedKeyMeta(ctx *TransactionContext) map[string]string {
	out := make(map[string]string, len(a.CountBy))
	for _, key := range a.CountBy {
		switch key {
		case PartitionSenderAddress:
			out[string(PartitionSenderAddress)] = ctx.SenderAddress.String()
		}
	}
	return out
}

type aggregateSpecYAML struct {
	Window  string   `yaml:"window"`
	Value   string   `yaml:"value"`
	CountBy []string `yaml:"count-by"`
}

func (a AggregateSpec) MarshalYAML() (interface{}, error) {
	countBy := make([]string, len(a.CountBy))
	for i, k := range a.CountBy {
		countBy[i] = string(k)
	}
	return aggregateSpecYAML{
		Window:  formatHumanDuration(a.Window),
		Value:   a.Threshold.String(),
		CountBy: countBy,
	}, nil
}

func (a *AggregateSpec) UnmarshalYAML(value *yaml.Node) error {
	var raw aggregateSpecYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	window, err := parseHumanDuration(raw.Window)
	if err != nil {
		return fmt.Errorf("%w: gas-usage.window: %v", ErrInvalidConfig, err)
	}
	threshold, err := parseNumericComparator(raw.Value)
	if err != nil {
		return fmt.Errorf("%w: gas-usage.value: %v", ErrInvalidConfig, err)
	}
	countBy := make([]PartitionKey, len(raw.CountBy))
	for i, k := range raw.CountBy {
		pk := PartitionKey(k)
		if err := pk.validate(); err != nil {
			return err
		}
		countBy[i] = pk
	}
	*a = AggregateSpec{Window: window, Threshold: threshold, CountBy: countBy}
	return nil
}

// parseHumanDuration parses spec.md §6.1's human-readable window strings
// like "1h 30m" (space-separated units) into a time.Duration.
// time.ParseDuration already accepts "1h30m"; this only strips the
// spaces the config format additionally allows.
func parseHumanDuration(s string) (time.Duration, error) {
	compact := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if compact == "" {
		return 0, fmt.Errorf("empty duration")
	}
	return time.ParseDuration(compact)
}

func formatHumanDuration(d time.Duration) string {
	return d.String()
}
