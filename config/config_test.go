package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOverridesOnlyMentionedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ckb.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
DataDir = "/var/lib/ckb"

[Pool]
MinFeeRate = 2000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/ckb", cfg.DataDir)
	require.Equal(t, uint64(2000), cfg.Pool.MinFeeRate)
	// Untouched fields keep their defaults.
	require.Equal(t, Default().Pool.MaxAncestors, cfg.Pool.MaxAncestors)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ckb.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
NotARealField = 1
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestDumpRoundTripsThroughLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ckb.toml")

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, Default()))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default().DataDir, cfg.DataDir)
}
