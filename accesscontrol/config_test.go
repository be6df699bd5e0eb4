// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConfigDecodesPolicyAndRules(t *testing.T) {
	require := require.New(t)

	doc := `
access-policy: deny-all
rules:
  - sender-address: "*"
    action: allow
`
	cfg, err := ParseConfig([]byte(doc))
	require.NoError(err)
	require.Equal(DenyAll, cfg.AccessPolicy)
	require.Len(cfg.Rules, 1)
}

func TestParseConfigRejectsInvalidYAML(t *testing.T) {
	_, err := ParseConfig([]byte("access-policy: [unterminated"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.yaml")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigReadsFromDisk(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(os.WriteFile(path, []byte("access-policy: allow-all\nrules: []\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(err)
	require.Equal(AllowAll, cfg.AccessPolicy)
	require.Empty(cfg.Rules)
}

func TestConfigInitializeCompilesEveryRegoRule(t *testing.T) {
	require := require.New(t)

	regoPath := writeRegoFile(t, `package accessctl

allow { input.transaction_data.amount > 0 }
`)
	cfg := &Config{
		AccessPolicy: DenyAll,
		Rules: []Rule{
			{
				SenderAddress:  AllAddresses(),
				RegoExpression: NewRegoPredicate(Source{Kind: SourceFile, URL: regoPath, RegoRulePath: "data.accessctl.allow"}),
				Action:         AllowAction(),
			},
		},
	}

	require.NoError(cfg.Initialize(context.Background()))
}

func TestConfigInitializeReportsWhichRuleFailed(t *testing.T) {
	cfg := &Config{
		AccessPolicy: DenyAll,
		Rules: []Rule{
			{SenderAddress: AllAddresses(), Action: AllowAction()},
			{
				SenderAddress:  AllAddresses(),
				RegoExpression: NewRegoPredicate(Source{Kind: SourceFile, URL: "/does/not/exist.rego", RegoRulePath: "data.accessctl.allow"}),
				Action:         DenyAction(),
			},
		},
	}

	err := cfg.Initialize(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "rule #2")
}
