package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/compto-com/comptoken-program/pkg/core/consensus"
)

func TestDevnetConfig_IsValid(t *testing.T) {
	cfg := DevnetConfig
	require.NoError(t, cfg.Validate())

	target, err := cfg.DifficultyTarget()
	require.NoError(t, err)
	require.Equal(t, consensus.DefaultTarget(), target)
}

func TestLoad_TOMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "comptoken.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
Name = "testnet"
ListenAddr = "0.0.0.0:9000"
ProofReward = 5
`), 0600))

	t.Chdir(dir)
	t.Setenv("COMPTOKEN_MINER_WORKERS", "3")
	t.Setenv("COMPTOKEN_DATA_DIR", "/var/lib/comptoken")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "testnet", cfg.Name)
	require.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	require.Equal(t, uint64(5), cfg.ProofReward)
	require.Equal(t, 3, cfg.MinerWorkers)
	require.Equal(t, "/var/lib/comptoken", cfg.DataDir)
	require.Equal(t, DevnetConfig.Target, cfg.Target)
	require.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("COMPTOKEN_NAME=from-dotenv\n"), 0600))
	t.Chdir(dir)
	// Registers a restore of the original value, then clears it so the
	// .env file is not shadowed.
	t.Setenv("COMPTOKEN_NAME", "")
	require.NoError(t, os.Unsetenv("COMPTOKEN_NAME"))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.Name)
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	cfg := DevnetConfig
	err := cfg.applyEnv(func(key string) (string, bool) {
		if key == "COMPTOKEN_PROOF_REWARD" {
			return "lots", true
		}
		return "", false
	})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NetworkConfig)
	}{
		{"empty name", func(c *NetworkConfig) { c.Name = "" }},
		{"bad target", func(c *NetworkConfig) { c.Target = "xyz" }},
		{"short target", func(c *NetworkConfig) { c.Target = "0eadd8" }},
		{"zero reward", func(c *NetworkConfig) { c.ProofReward = 0 }},
		{"interval too long", func(c *NetworkConfig) { c.AnnouncementInterval = 86_400 }},
		{"bad program id", func(c *NetworkConfig) { c.ProgramID = "not base58!" }},
		{"negative workers", func(c *NetworkConfig) { c.MinerWorkers = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DevnetConfig
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
