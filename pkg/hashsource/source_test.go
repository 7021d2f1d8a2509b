package hashsource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/compto-com/comptoken-program/pkg/core/types"
)

type mockSolanaRPC struct {
	getLatestBlockhashFunc func(context.Context, solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error)
}

func (m *mockSolanaRPC) GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error) {
	return m.getLatestBlockhashFunc(ctx, commitment)
}

func TestRPCSource_LatestBlockhash(t *testing.T) {
	want := solana.Hash{7, 7, 7}

	t.Run("returns finalized hash", func(t *testing.T) {
		var gotCommitment solanarpc.CommitmentType
		src := NewRPCSourceWithClient(&mockSolanaRPC{
			getLatestBlockhashFunc: func(_ context.Context, c solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error) {
				gotCommitment = c
				return &solanarpc.GetLatestBlockhashResult{
					Value: &solanarpc.LatestBlockhashResult{Blockhash: want},
				}, nil
			},
		}, nil)

		got, err := src.LatestBlockhash(context.Background())
		require.NoError(t, err)
		require.Equal(t, types.Hash(want), got)
		require.Equal(t, solanarpc.CommitmentFinalized, gotCommitment)
	})

	t.Run("empty result", func(t *testing.T) {
		src := NewRPCSourceWithClient(&mockSolanaRPC{
			getLatestBlockhashFunc: func(context.Context, solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error) {
				return &solanarpc.GetLatestBlockhashResult{}, nil
			},
		}, nil)

		_, err := src.LatestBlockhash(context.Background())
		require.ErrorIs(t, err, ErrNoBlockhash)
	})

	t.Run("rpc error", func(t *testing.T) {
		boom := errors.New("connection refused")
		src := NewRPCSourceWithClient(&mockSolanaRPC{
			getLatestBlockhashFunc: func(context.Context, solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error) {
				return nil, boom
			},
		}, nil)

		_, err := src.LatestBlockhash(context.Background())
		require.ErrorIs(t, err, boom)
	})
}

func TestDaily_ChangesAtDayBoundary(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(100*types.SecPerDay+10, 0))
	src := NewDaily("devnet", clock)

	first, err := src.LatestBlockhash(context.Background())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	same, err := src.LatestBlockhash(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, same)

	clock.Advance(24 * time.Hour)
	next, err := src.LatestBlockhash(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first, next)
}

func TestStatic(t *testing.T) {
	h := types.ComputeSHA256([]byte("x"))
	got, err := Static(h).LatestBlockhash(context.Background())
	require.NoError(t, err)
	require.Equal(t, h, got)
}
