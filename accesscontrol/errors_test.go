// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuleErrorUnwrapsAndMatchesSentinel(t *testing.T) {
	require := require.New(t)
	cause := errors.New("boom")
	err := &RuleError{RuleIndex: 2, Cause: cause}

	require.ErrorIs(err, ErrRuleEvaluation)
	require.Equal(cause, errors.Unwrap(err))
	require.Contains(err.Error(), "rule #3")
}

func TestHookErrorTruncatesExcerpt(t *testing.T) {
	require := require.New(t)
	body := strings.Repeat("x", hookErrorExcerptLimit+100)

	err := newHookError(502, body)
	require.ErrorIs(err, ErrHookFailed)
	require.Len(err.BodyExcerpt, hookErrorExcerptLimit)
}
