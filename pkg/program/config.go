package program

import (
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/compto-com/comptoken-program/pkg/core/consensus"
	"github.com/compto-com/comptoken-program/pkg/core/types"
	"github.com/compto-com/comptoken-program/pkg/hashsource"
	"github.com/compto-com/comptoken-program/pkg/store"
)

// Store is the account storage the program runs instructions against.
type Store interface {
	Update(fn func(*store.Txn) error) error
	View(fn func(*store.Txn) error) error
}

type Config struct {
	Logger     *slog.Logger
	Store      Store
	HashSource hashsource.Source
	Clock      clockwork.Clock

	// ProgramID seeds the bank addresses.
	ProgramID            types.Pubkey
	Target               consensus.Target
	ProofReward          types.Amount
	AnnouncementInterval int64
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.HashSource == nil {
		return errors.New("hash source is required")
	}
	if cfg.ProofReward == 0 {
		return errors.New("proof reward must be positive")
	}
	if cfg.AnnouncementInterval < 0 || cfg.AnnouncementInterval >= types.SecPerDay {
		return errors.New("announcement interval must be within a day")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Banks are the program-owned token accounts distributions are minted into.
type Banks struct {
	Interest         types.Pubkey
	VerifiedHumanUBI types.Pubkey
	FutureUBI        types.Pubkey
}

// DeriveBanks returns the bank addresses for a program id.
func DeriveBanks(programID types.Pubkey) Banks {
	return Banks{
		Interest:         types.DeriveAddress(programID, "interest_bank"),
		VerifiedHumanUBI: types.DeriveAddress(programID, "verified_human_ubi_bank"),
		FutureUBI:        types.DeriveAddress(programID, "future_ubi_bank"),
	}
}

// Contains reports whether pk is one of the banks.
func (b Banks) Contains(pk types.Pubkey) bool {
	return pk == b.Interest || pk == b.VerifiedHumanUBI || pk == b.FutureUBI
}
