// Package program implements the comptoken instructions over the account
// store. Each instruction runs in a single store transaction.
package program

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/compto-com/comptoken-program/pkg/core/blockhash"
	"github.com/compto-com/comptoken-program/pkg/core/consensus"
	"github.com/compto-com/comptoken-program/pkg/core/distribution"
	"github.com/compto-com/comptoken-program/pkg/core/ledger"
	"github.com/compto-com/comptoken-program/pkg/core/types"
	"github.com/compto-com/comptoken-program/pkg/metrics"
	"github.com/compto-com/comptoken-program/pkg/store"
	"github.com/compto-com/comptoken-program/pkg/token"
)

var (
	ErrNotInitialized     = errors.New("program global data is not initialized")
	ErrAlreadyInitialized = errors.New("program global data is already initialized")
	ErrUserDataExists     = errors.New("user data already exists")
	ErrUserDataNotFound   = errors.New("user data not found")
	ErrNotCurrent         = errors.New("user data has unclaimed distributions")
	ErrAlreadyVerified    = errors.New("user is already a verified human")
)

// Program processes instructions. Instructions are serialized.
type Program struct {
	cfg      Config
	log      *slog.Logger
	banks    Banks
	verifier *consensus.Verifier

	mu sync.Mutex
}

func New(cfg Config) (*Program, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid program config: %w", err)
	}
	return &Program{
		cfg:      cfg,
		log:      cfg.Logger,
		banks:    DeriveBanks(cfg.ProgramID),
		verifier: consensus.NewVerifier(cfg.Target),
	}, nil
}

// Banks returns the bank addresses.
func (p *Program) Banks() Banks {
	return p.banks
}

func (p *Program) now() int64 {
	return p.cfg.Clock.Now().Unix()
}

// Initialize creates the global data from the current network hash.
func (p *Program) Initialize(ctx context.Context) (err error) {
	defer observe("initialize", &err)

	current, err := p.cfg.HashSource.LatestBlockhash(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	err = p.cfg.Store.Update(func(txn *store.Txn) error {
		exists, err := txn.Has(store.GlobalKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyInitialized
		}
		return saveGlobal(txn, distribution.NewState(current, now, p.cfg.AnnouncementInterval))
	})
	if err != nil {
		return err
	}

	p.log.Info("program: initialized", "blockhash", current, "interest_bank", p.banks.Interest,
		"verified_human_ubi_bank", p.banks.VerifiedHumanUBI, "future_ubi_bank", p.banks.FutureUBI)
	return nil
}

// CreateUserData creates an empty proof ledger of space bytes for owner.
func (p *Program) CreateUserData(owner types.Pubkey, space int) (err error) {
	defer observe("create_user_data", &err)

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cfg.Store.Update(func(txn *store.Txn) error {
		exists, err := txn.Has(store.UserKey(owner))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrUserDataExists, owner)
		}
		u, err := ledger.New(space, p.now())
		if err != nil {
			return err
		}
		return saveUser(txn, owner, u)
	})
}

// GrowUserData enlarges owner's ledger to newSpace bytes.
func (p *Program) GrowUserData(owner types.Pubkey, newSpace int) (err error) {
	defer observe("grow_user_data", &err)

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cfg.Store.Update(func(txn *store.Txn) error {
		u, err := loadUser(txn, owner)
		if err != nil {
			return err
		}
		if err := u.Grow(newSpace); err != nil {
			return err
		}
		return saveUser(txn, owner, u)
	})
}

// SubmitProof verifies a mined payload for wallet, records it and mints the
// proof reward to wallet.
func (p *Program) SubmitProof(wallet types.Pubkey, payload []byte) (proof *consensus.Proof, err error) {
	defer observe("submit_proof", &err)

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	err = p.cfg.Store.Update(func(txn *store.Txn) error {
		st, err := p.loadGlobal(txn)
		if err != nil {
			return err
		}
		u, err := loadUser(txn, wallet)
		if err != nil {
			return err
		}

		// 1. Verify against the stored window.
		proof, err = p.verifier.VerifySubmittedProof(wallet, payload, &st.Window, now)
		if err != nil {
			return err
		}

		// 2. Record it under the hash it was mined against.
		if err := u.Insert(proof.Hash, st.Window.ValidHash); err != nil {
			return err
		}
		if err := saveUser(txn, wallet, u); err != nil {
			return err
		}

		// 3. Pay the reward.
		return token.Mint(txn, wallet, p.cfg.ProofReward)
	})
	if err != nil {
		metrics.ProofsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	metrics.ProofsAcceptedTotal.Inc()
	metrics.TokensMintedTotal.WithLabelValues("proof").Add(float64(p.cfg.ProofReward))
	p.log.Debug("program: proof accepted", "wallet", wallet, "hash", proof.Hash)
	return proof, nil
}

// DailyDistribution runs the once-a-day issuance and mints the results into
// the banks.
func (p *Program) DailyDistribution(ctx context.Context) (values distribution.Values, err error) {
	defer observe("daily_distribution", &err)

	current, err := p.cfg.HashSource.LatestBlockhash(ctx)
	if err != nil {
		return distribution.Values{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var st *distribution.State
	err = p.cfg.Store.Update(func(txn *store.Txn) error {
		var err error
		st, err = p.loadGlobal(txn)
		if err != nil {
			return err
		}
		supply, err := token.Supply(txn)
		if err != nil {
			return err
		}
		futureBank, err := token.Balance(txn, p.banks.FutureUBI)
		if err != nil {
			return err
		}

		values, err = st.DailyDistribution(supply, futureBank, current, now)
		if err != nil {
			return err
		}

		if err := token.Mint(txn, p.banks.Interest, values.Interest); err != nil {
			return err
		}
		if err := token.Mint(txn, p.banks.VerifiedHumanUBI, values.VerifiedHumanUBI); err != nil {
			return err
		}
		if err := token.Mint(txn, p.banks.FutureUBI, values.FutureUBI); err != nil {
			return err
		}
		return saveGlobal(txn, st)
	})
	if err != nil {
		return distribution.Values{}, err
	}

	metrics.TokensMintedTotal.WithLabelValues("interest_bank").Add(float64(values.Interest))
	metrics.TokensMintedTotal.WithLabelValues("verified_human_ubi_bank").Add(float64(values.VerifiedHumanUBI))
	metrics.TokensMintedTotal.WithLabelValues("future_ubi_bank").Add(float64(values.FutureUBI))
	metrics.HighWaterMark.Set(float64(st.HighWaterMark))
	metrics.YesterdaySupply.Set(float64(st.YesterdaySupply))

	p.log.Info("program: daily distribution",
		"interest", values.Interest,
		"verified_human_ubi", values.VerifiedHumanUBI,
		"future_ubi", values.FutureUBI,
		"high_water_mark", st.HighWaterMark,
		"yesterday_supply", st.YesterdaySupply)
	return values, nil
}

// GetValidBlockhashes refreshes the window with the current network hash and
// returns valid_hash || announced_hash. Miners call it before mining.
func (p *Program) GetValidBlockhashes(ctx context.Context) (hashes [2 * types.HashSize]byte, err error) {
	defer observe("get_valid_blockhashes", &err)

	current, err := p.cfg.HashSource.LatestBlockhash(ctx)
	if err != nil {
		return hashes, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	err = p.cfg.Store.Update(func(txn *store.Txn) error {
		st, err := p.loadGlobal(txn)
		if err != nil {
			return err
		}
		st.Window.Refresh(current, now)
		hashes = st.Window.Blockhashes()
		return saveGlobal(txn, st)
	})
	return hashes, err
}

// GetOwedComptokens pays owner the interest, and UBI if verified, accrued
// since their last payout day.
func (p *Program) GetOwedComptokens(owner types.Pubkey) (owed distribution.Owed, err error) {
	defer observe("get_owed_comptokens", &err)

	p.mu.Lock()
	defer p.mu.Unlock()

	today := types.NormalizeTime(p.now())
	err = p.cfg.Store.Update(func(txn *store.Txn) error {
		st, err := p.loadGlobal(txn)
		if err != nil {
			return err
		}
		u, err := loadUser(txn, owner)
		if err != nil {
			return err
		}
		balance, err := token.Balance(txn, owner)
		if err != nil {
			return err
		}

		days := (today - u.LastInterestPayoutDay) / types.SecPerDay
		owed = st.OwedDistributions(days, balance, u.IsVerifiedHuman)
		u.LastInterestPayoutDay = today

		if err := token.Transfer(txn, p.banks.Interest, owner, owed.Interest); err != nil {
			return fmt.Errorf("pay interest: %w", err)
		}
		if err := token.Transfer(txn, p.banks.VerifiedHumanUBI, owner, owed.UBI); err != nil {
			return fmt.Errorf("pay ubi: %w", err)
		}
		return saveUser(txn, owner, u)
	})
	if err != nil {
		return distribution.Owed{}, err
	}

	p.log.Debug("program: owed comptokens paid", "owner", owner, "interest", owed.Interest, "ubi", owed.UBI)
	return owed, nil
}

// VerifyHuman marks owner as a verified human and pays them their share of
// the future UBI bank. The owner must have claimed everything owed so far.
func (p *Program) VerifyHuman(owner types.Pubkey) (share types.Amount, err error) {
	defer observe("verify_human", &err)

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var verified uint64
	err = p.cfg.Store.Update(func(txn *store.Txn) error {
		st, err := p.loadGlobal(txn)
		if err != nil {
			return err
		}
		u, err := loadUser(txn, owner)
		if err != nil {
			return err
		}
		if u.IsVerifiedHuman {
			return fmt.Errorf("%w: %s", ErrAlreadyVerified, owner)
		}
		if !u.IsCurrent(now) {
			return fmt.Errorf("%w: %s", ErrNotCurrent, owner)
		}

		pool, err := token.Balance(txn, p.banks.FutureUBI)
		if err != nil {
			return err
		}
		share = pool / types.Amount(distribution.FutureUBIVerifiedHumans)
		if err := token.Transfer(txn, p.banks.FutureUBI, owner, share); err != nil {
			return err
		}

		u.IsVerifiedHuman = true
		st.AddVerifiedHuman()
		verified = st.VerifiedHumans
		if err := saveUser(txn, owner, u); err != nil {
			return err
		}
		return saveGlobal(txn, st)
	})
	if err != nil {
		return 0, err
	}

	metrics.VerifiedHumans.Set(float64(verified))
	p.log.Info("program: human verified", "owner", owner, "share", share, "verified_humans", verified)
	return share, nil
}

// CheckTransfer enforces that neither side of a transfer has unclaimed
// distributions. Banks are exempt.
func (p *Program) CheckTransfer(source, destination types.Pubkey) error {
	return p.cfg.Store.View(func(txn *store.Txn) error {
		return p.checkTransfer(txn, source, destination)
	})
}

func (p *Program) checkTransfer(txn *store.Txn, source, destination types.Pubkey) error {
	now := p.now()
	for _, pk := range []types.Pubkey{source, destination} {
		if p.banks.Contains(pk) {
			continue
		}
		u, err := loadUser(txn, pk)
		if err != nil {
			return err
		}
		if !u.IsCurrent(now) {
			return fmt.Errorf("%w: %s", ErrNotCurrent, pk)
		}
	}
	return nil
}

// Transfer moves amount tokens from one holder to another after the
// transfer gate passes.
func (p *Program) Transfer(from, to types.Pubkey, amount types.Amount) (err error) {
	defer observe("transfer", &err)

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cfg.Store.Update(func(txn *store.Txn) error {
		if err := p.checkTransfer(txn, from, to); err != nil {
			return err
		}
		return token.Transfer(txn, from, to, amount)
	})
}

// Status is a snapshot of the global data and the token supply.
type Status struct {
	Window               blockhash.Window
	Supply               types.Amount
	YesterdaySupply      uint64
	HighWaterMark        uint64
	LastDistributionTime int64
	VerifiedHumans       uint64
	LatestEntry          distribution.Entry
	Banks                Banks
	BankBalances         [3]types.Amount
}

func (p *Program) Status() (*Status, error) {
	var s Status
	err := p.cfg.Store.View(func(txn *store.Txn) error {
		st, err := p.loadGlobal(txn)
		if err != nil {
			return err
		}
		if s.Supply, err = token.Supply(txn); err != nil {
			return err
		}
		for i, bank := range []types.Pubkey{p.banks.Interest, p.banks.VerifiedHumanUBI, p.banks.FutureUBI} {
			if s.BankBalances[i], err = token.Balance(txn, bank); err != nil {
				return err
			}
		}
		s.Window = st.Window
		s.YesterdaySupply = st.YesterdaySupply
		s.HighWaterMark = st.HighWaterMark
		s.LastDistributionTime = st.LastDistributionTime
		s.VerifiedHumans = st.VerifiedHumans
		s.LatestEntry = st.History.Newest()
		s.Banks = p.banks
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UserData returns owner's ledger.
func (p *Program) UserData(owner types.Pubkey) (*ledger.UserData, error) {
	var u *ledger.UserData
	err := p.cfg.Store.View(func(txn *store.Txn) error {
		var err error
		u, err = loadUser(txn, owner)
		return err
	})
	return u, err
}

// Balance returns owner's token balance.
func (p *Program) Balance(owner types.Pubkey) (types.Amount, error) {
	var b types.Amount
	err := p.cfg.Store.View(func(txn *store.Txn) error {
		var err error
		b, err = token.Balance(txn, owner)
		return err
	})
	return b, err
}

func (p *Program) loadGlobal(txn *store.Txn) (*distribution.State, error) {
	data, err := txn.Get(store.GlobalKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	var st distribution.State
	if err := st.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	st.Window.AnnouncementInterval = p.cfg.AnnouncementInterval
	return &st, nil
}

func saveGlobal(txn *store.Txn, st *distribution.State) error {
	data, err := st.MarshalBinary()
	if err != nil {
		return err
	}
	return txn.Set(store.GlobalKey, data)
}

func loadUser(txn *store.Txn, owner types.Pubkey) (*ledger.UserData, error) {
	data, err := txn.Get(store.UserKey(owner))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserDataNotFound, owner)
	}
	if err != nil {
		return nil, err
	}
	var u ledger.UserData
	if err := u.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &u, nil
}

func saveUser(txn *store.Txn, owner types.Pubkey, u *ledger.UserData) error {
	data, err := u.MarshalBinary()
	if err != nil {
		return err
	}
	return txn.Set(store.UserKey(owner), data)
}

func observe(instruction string, err *error) {
	status := "ok"
	if *err != nil {
		status = "error"
	}
	metrics.InstructionsTotal.WithLabelValues(instruction, status).Inc()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, consensus.ErrInvalidPayloadSize):
		return "invalid_payload"
	case errors.Is(err, consensus.ErrInvalidProof):
		return "below_target"
	case errors.Is(err, consensus.ErrStaleBlockhash):
		return "stale_blockhash"
	case errors.Is(err, consensus.ErrPubkeyMismatch):
		return "pubkey_mismatch"
	case errors.Is(err, ledger.ErrDuplicateProof):
		return "duplicate"
	case errors.Is(err, ledger.ErrStorageFull):
		return "storage_full"
	case errors.Is(err, ErrUserDataNotFound):
		return "no_user_data"
	default:
		return "other"
	}
}
