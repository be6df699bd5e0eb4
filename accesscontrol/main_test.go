// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain uses goleak to verify tests in this package do not leak
// unexpected goroutines (the hook HTTP client and Rego evaluation are the
// two places a stray goroutine could hide).
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
