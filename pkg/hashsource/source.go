// Package hashsource provides the rolling network hash that proofs are
// mined against.
package hashsource

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"

	"github.com/compto-com/comptoken-program/pkg/core/types"
)

var (
	ErrNoBlockhash = errors.New("rpc returned no blockhash")
)

// Source returns the network's most recent hash.
type Source interface {
	LatestBlockhash(ctx context.Context) (types.Hash, error)
}

// SolanaRPC is the subset of the solana-go RPC client used here.
type SolanaRPC interface {
	GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error)
}

// RPCSource reads the latest finalized blockhash from a Solana cluster.
type RPCSource struct {
	rpc SolanaRPC
	log *slog.Logger
}

// NewRPCSource connects to the cluster at endpoint.
func NewRPCSource(endpoint string, log *slog.Logger) *RPCSource {
	return NewRPCSourceWithClient(solanarpc.New(endpoint), log)
}

// NewRPCSourceWithClient wraps an existing client.
func NewRPCSourceWithClient(client SolanaRPC, log *slog.Logger) *RPCSource {
	if log == nil {
		log = slog.Default()
	}
	return &RPCSource{rpc: client, log: log}
}

func (s *RPCSource) LatestBlockhash(ctx context.Context) (types.Hash, error) {
	res, err := s.rpc.GetLatestBlockhash(ctx, solanarpc.CommitmentFinalized)
	if err != nil {
		return types.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	if res == nil || res.Value == nil {
		return types.Hash{}, ErrNoBlockhash
	}
	s.log.Debug("hashsource: latest blockhash", "hash", res.Value.Blockhash.String(), "slot", res.Context.Slot)
	return types.Hash(res.Value.Blockhash), nil
}

// Static always returns the same hash.
type Static types.Hash

func (s Static) LatestBlockhash(context.Context) (types.Hash, error) {
	return types.Hash(s), nil
}

// Daily derives a new hash at every day boundary from a seed. It stands in
// for the network when running offline.
type Daily struct {
	Seed  string
	Clock clockwork.Clock
}

// NewDaily returns a Daily source. A nil clock means the real clock.
func NewDaily(seed string, clock clockwork.Clock) *Daily {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Daily{Seed: seed, Clock: clock}
}

func (d *Daily) LatestBlockhash(context.Context) (types.Hash, error) {
	var day [8]byte
	binary.LittleEndian.PutUint64(day[:], uint64(types.Today(d.Clock.Now())))
	return types.ComputeSHA256([]byte(d.Seed), day[:]), nil
}
