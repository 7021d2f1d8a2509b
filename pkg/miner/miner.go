// Package miner searches for proof payloads off-chain and submits them.
package miner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/compto-com/comptoken-program/pkg/core/consensus"
	"github.com/compto-com/comptoken-program/pkg/core/types"
	"github.com/compto-com/comptoken-program/pkg/metrics"
)

var (
	ErrNonceSpaceExhausted = errors.New("no nonce meets the target")

	errSolved = errors.New("solved")
)

// hashBatch is how many nonces a worker tries between context checks.
const hashBatch = 1024

// Network is the program surface the mining loop talks to.
type Network interface {
	GetValidBlockhashes(ctx context.Context) ([2 * types.HashSize]byte, error)
	SubmitProof(ctx context.Context, wallet types.Pubkey, payload []byte) error
}

type Config struct {
	Logger  *slog.Logger
	Hasher  consensus.Hasher
	Target  consensus.Target
	Wallet  types.Pubkey
	Network Network
	Clock   clockwork.Clock

	// Workers defaults to the number of CPUs.
	Workers int
	// RoundTimeout bounds one search before the valid hash is re-read.
	RoundTimeout time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Hasher == nil {
		return errors.New("hasher is required")
	}
	if cfg.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.RoundTimeout == 0 {
		cfg.RoundTimeout = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

type Miner struct {
	cfg  Config
	log  *slog.Logger
	quit chan struct{}
	wg   sync.WaitGroup
}

func New(cfg Config) (*Miner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid miner config: %w", err)
	}
	return &Miner{cfg: cfg, log: cfg.Logger, quit: make(chan struct{})}, nil
}

// Solve searches the nonce space across the configured workers for a
// payload whose header, built against validHash, meets the target.
func (m *Miner) Solve(ctx context.Context, wallet types.Pubkey, extraData [32]byte, validHash types.Hash) ([]byte, error) {
	template := consensus.Payload{
		Pubkey:    wallet,
		ExtraData: extraData,
		Version:   1,
		Timestamp: uint32(m.cfg.Clock.Now().Unix()),
	}
	start := rand.Uint32()
	workers := uint64(m.cfg.Workers)

	var (
		once   sync.Once
		result []byte
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := uint64(0); w < workers; w++ {
		g.Go(func() error {
			payload := template
			header := consensus.NewProofHeader(&payload, validHash)
			buf := make([]byte, consensus.HeaderSize)

			for i := w; i <= 0xffffffff; i += workers {
				if (i/workers)%hashBatch == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
					metrics.MinerHashesTotal.Add(hashBatch)
				}

				header.Nonce = start + uint32(i)
				header.SerializeInto(buf)
				hash, err := m.cfg.Hasher.Hash(buf)
				if err != nil {
					return err
				}
				if m.cfg.Target.IsMetBy(hash) {
					payload.Nonce = header.Nonce
					once.Do(func() { result = payload.Serialize() })
					return errSolved
				}
			}
			return nil
		})
	}

	err := g.Wait()
	switch {
	case errors.Is(err, errSolved):
		return result, nil
	case err != nil:
		return nil, err
	default:
		return nil, ErrNonceSpaceExhausted
	}
}

func (m *Miner) Start() {
	m.log.Info("miner: started", "workers", m.cfg.Workers, "wallet", m.cfg.Wallet)
	m.wg.Add(1)
	go m.miningLoop()
}

func (m *Miner) Stop() {
	close(m.quit)
	m.wg.Wait()
	m.log.Info("miner: stopped")
}

func (m *Miner) miningLoop() {
	defer m.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-m.quit
		cancel()
	}()

	for ctx.Err() == nil {
		if err := m.mineOnce(ctx); err != nil && ctx.Err() == nil {
			m.log.Warn("miner: round failed", "error", err)
			select {
			case <-ctx.Done():
			case <-m.cfg.Clock.After(time.Second):
			}
		}
	}
}

func (m *Miner) mineOnce(ctx context.Context) error {
	// 1. Read the hash proofs must be mined against.
	hashes, err := m.cfg.Network.GetValidBlockhashes(ctx)
	if err != nil {
		return fmt.Errorf("get valid blockhashes: %w", err)
	}
	validHash, err := types.HashFromBytes(hashes[:types.HashSize])
	if err != nil {
		return err
	}

	// 2. Search until solved or the round times out.
	roundCtx, cancel := context.WithTimeout(ctx, m.cfg.RoundTimeout)
	defer cancel()
	var extra [32]byte
	for i := range extra {
		extra[i] = byte(rand.Uint32())
	}
	payload, err := m.Solve(roundCtx, m.cfg.Wallet, extra, validHash)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return err
	}

	// 3. Submit.
	if err := m.cfg.Network.SubmitProof(ctx, m.cfg.Wallet, payload); err != nil {
		return fmt.Errorf("submit proof: %w", err)
	}
	m.log.Debug("miner: proof submitted", "valid_hash", validHash)
	return nil
}
