// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Address is a 32-byte on-chain address, as produced by the chain client
// that decodes raw transaction bytes (out of scope here — this package
// only ever receives already-decoded addresses).
type Address [32]byte

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// ParseAddress decodes a "0x"-prefixed (or bare) hex string into an
// Address. It is the Go analogue of fastcrypto's decode_bytes_hex used by
// the original implementation's serde visitor.
func ParseAddress(s string) (Address, error) {
	var addr Address
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("accesscontrol: invalid address %q: %w", s, err)
	}
	if len(b) != len(addr) {
		return addr, fmt.Errorf("accesscontrol: address %q has %d bytes, want %d", s, len(b), len(addr))
	}
	copy(addr[:], b)
	return addr, nil
}

// AddressSet is the sender/package address matcher: "*" (All), a single
// address, or a list of addresses.
type AddressSet struct {
	all  bool
	list []Address
}

// AllAddresses returns the wildcard address set.
func AllAddresses() AddressSet {
	return AddressSet{all: true}
}

// NewAddressSet builds a set from zero or more addresses. Zero addresses
// is equivalent to AllAddresses, one is a "Single" set, more than one is
// a "List" set — mirroring original_source's ValueIotaAddress::new.
func NewAddressSet(addrs ...Address) AddressSet {
	if len(addrs) == 0 {
		return AllAddresses()
	}
	return AddressSet{list: addrs}
}

// Includes reports whether addr is a member of the set.
func (s AddressSet) Includes(addr Address) bool {
	if s.all {
		return true
	}
	for _, a := range s.list {
		if a == addr {
			return true
		}
	}
	return false
}

// IncludesAny reports whether any of addrs is a member of the set.
func (s AddressSet) IncludesAny(addrs []Address) bool {
	for _, a := range addrs {
		if s.Includes(a) {
			return true
		}
	}
	return false
}

func (s AddressSet) IsAll() bool {
	return s.all
}

func (s AddressSet) MarshalYAML() (interface{}, error) {
	switch {
	case s.all:
		return "*", nil
	case len(s.list) == 1:
		return s.list[0].String(), nil
	default:
		out := make([]string, len(s.list))
		for i, a := range s.list {
			out[i] = a.String()
		}
		return out, nil
	}
}

func (s *AddressSet) UnmarshalYAML(value *yaml.Node) error {
	var single string
	if err := value.Decode(&single); err == nil {
		if single == "*" {
			*s = AllAddresses()
			return nil
		}
		addr, err := ParseAddress(single)
		if err != nil {
			return err
		}
		*s = AddressSet{list: []Address{addr}}
		return nil
	}

	var many []string
	if err := value.Decode(&many); err != nil {
		return fmt.Errorf("accesscontrol: sender-address must be \"*\", a hex address, or a list of hex addresses: %w", err)
	}
	addrs := make([]Address, len(many))
	for i, s := range many {
		addr, err := ParseAddress(s)
		if err != nil {
			return err
		}
		addrs[i] = addr
	}
	*s = AddressSet{list: addrs}
	return nil
}

// comparatorOp is one of the six total-order comparisons a
// NumericComparator can express. The YAML/JSON wire encoding is the
// operator string immediately followed by the decimal value, e.g.
// "<=10000".
type comparatorOp string

const (
	opGE comparatorOp = ">="
	opLE comparatorOp = "<="
	opEQ comparatorOp = "="
	opNE comparatorOp = "!="
	opGT comparatorOp = ">"
	opLT comparatorOp = "<"
)

// operatorsLongestFirst must be tried in this order when parsing: longer
// operators before shorter ones sharing a prefix, so "<=10000" is never
// misread as "<" followed by "=10000".
var operatorsLongestFirst = []comparatorOp{opGE, opLE, opEQ, opNE, opGT, opLT}

// NumericComparator is a single comparison against a u64 value: exactly
// one operator, no conjunctions (spec.md §3).
type NumericComparator struct {
	op    comparatorOp
	value uint64
}

func NewNumericComparator(op string, value uint64) (NumericComparator, error) {
	for _, o := range operatorsLongestFirst {
		if string(o) == op {
			return NumericComparator{op: o, value: value}, nil
		}
	}
	return NumericComparator{}, fmt.Errorf("%w: unknown comparator operator %q", ErrInvalidConfig, op)
}

// Matches evaluates the comparator against v.
func (c NumericComparator) Matches(v uint64) bool {
	switch c.op {
	case opGE:
		return v >= c.value
	case opLE:
		return v <= c.value
	case opEQ:
		return v == c.value
	case opNE:
		return v != c.value
	case opGT:
		return v > c.value
	case opLT:
		return v < c.value
	default:
		return false
	}
}

func (c NumericComparator) String() string {
	return fmt.Sprintf("%s%d", c.op, c.value)
}

func (c NumericComparator) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func (c *NumericComparator) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := parseNumericComparator(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func parseNumericComparator(s string) (NumericComparator, error) {
	for _, op := range operatorsLongestFirst {
		if strings.HasPrefix(s, string(op)) {
			rest := strings.TrimPrefix(s, string(op))
			n, err := strconv.ParseUint(rest, 10, 64)
			if err != nil {
				return NumericComparator{}, fmt.Errorf("%w: invalid numeric comparator %q: %v", ErrInvalidConfig, s, err)
			}
			return NumericComparator{op: op, value: n}, nil
		}
	}
	return NumericComparator{}, fmt.Errorf("%w: invalid numeric comparator %q: no recognized operator", ErrInvalidConfig, s)
}
