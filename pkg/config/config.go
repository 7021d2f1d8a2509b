package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/compto-com/comptoken-program/pkg/core/blockhash"
	"github.com/compto-com/comptoken-program/pkg/core/consensus"
	"github.com/compto-com/comptoken-program/pkg/core/types"
)

const envPrefix = "COMPTOKEN_"

// NetworkConfig holds the network-wide parameters.
type NetworkConfig struct {
	Name       string `toml:"Name"`
	DataDir    string `toml:"DataDir"`
	ListenAddr string `toml:"ListenAddr"`
	// SolanaRPC is the cluster the network hash is read from. Empty runs
	// offline with a hash derived from Name and the current day.
	SolanaRPC string `toml:"SolanaRPC"`
	// ProgramID is a base58 address. Empty derives one from Name.
	ProgramID            string `toml:"ProgramID"`
	Target               string `toml:"Target"`
	ProofReward          uint64 `toml:"ProofReward"`
	AnnouncementInterval int64  `toml:"AnnouncementInterval"`
	MinerWorkers         int    `toml:"MinerWorkers"`
}

// DevnetConfig is the default local configuration.
var DevnetConfig = NetworkConfig{
	Name:                 "comptoken-devnet",
	DataDir:              "",
	ListenAddr:           "127.0.0.1:8899",
	Target:               consensus.DefaultTargetHex,
	ProofReward:          uint64(types.ProofReward),
	AnnouncementInterval: blockhash.DefaultAnnouncementInterval,
}

// Load returns DevnetConfig overlaid with the TOML file at path (if path is
// non-empty), then a .env file in the working directory and COMPTOKEN_*
// environment variables.
func Load(path string) (*NetworkConfig, error) {
	cfg := DevnetConfig
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *NetworkConfig) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"NAME":        &c.Name,
		"DATA_DIR":    &c.DataDir,
		"LISTEN_ADDR": &c.ListenAddr,
		"SOLANA_RPC":  &c.SolanaRPC,
		"PROGRAM_ID":  &c.ProgramID,
		"TARGET":      &c.Target,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envPrefix + "PROOF_REWARD"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sPROOF_REWARD: %w", envPrefix, err)
		}
		c.ProofReward = n
	}
	if v, ok := lookup(envPrefix + "ANNOUNCEMENT_INTERVAL"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sANNOUNCEMENT_INTERVAL: %w", envPrefix, err)
		}
		c.AnnouncementInterval = n
	}
	if v, ok := lookup(envPrefix + "MINER_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMINER_WORKERS: %w", envPrefix, err)
		}
		c.MinerWorkers = n
	}
	return nil
}

func (c *NetworkConfig) Validate() error {
	if c.Name == "" {
		return errors.New("network name is required")
	}
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if _, err := c.DifficultyTarget(); err != nil {
		return err
	}
	if _, err := c.Program(); err != nil {
		return err
	}
	if c.ProofReward == 0 {
		return errors.New("proof reward must be positive")
	}
	if c.AnnouncementInterval <= 0 || c.AnnouncementInterval >= types.SecPerDay {
		return fmt.Errorf("announcement interval must be between 1 and %d seconds", types.SecPerDay-1)
	}
	if c.MinerWorkers < 0 {
		return errors.New("miner workers must not be negative")
	}
	return nil
}

// DifficultyTarget parses Target.
func (c *NetworkConfig) DifficultyTarget() (consensus.Target, error) {
	return consensus.TargetFromHex(c.Target)
}

// Program returns the program id.
func (c *NetworkConfig) Program() (types.Pubkey, error) {
	if c.ProgramID == "" {
		return types.Pubkey(types.ComputeSHA256([]byte("comptoken-program:" + c.Name))), nil
	}
	return types.PubkeyFromBase58(c.ProgramID)
}
