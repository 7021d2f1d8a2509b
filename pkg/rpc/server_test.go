package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/compto-com/comptoken-program/pkg/core/consensus"
	"github.com/compto-com/comptoken-program/pkg/core/distribution"
	"github.com/compto-com/comptoken-program/pkg/core/ledger"
	"github.com/compto-com/comptoken-program/pkg/core/types"
	"github.com/compto-com/comptoken-program/pkg/hashsource"
	"github.com/compto-com/comptoken-program/pkg/logger"
	"github.com/compto-com/comptoken-program/pkg/miner"
	"github.com/compto-com/comptoken-program/pkg/program"
	"github.com/compto-com/comptoken-program/pkg/store"
	"github.com/compto-com/comptoken-program/pkg/token"
	"github.com/compto-com/comptoken-program/pkg/wallet"
)

var _ miner.Network = (*Client)(nil)

type testEnv struct {
	server  *httptest.Server
	program *program.Program
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.NewBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	target, err := consensus.TargetFromHex(strings.Repeat("ff", 32))
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Unix(200*types.SecPerDay+60, 0))
	p, err := program.New(program.Config{
		Logger:      logger.NewTesting(),
		Store:       s,
		HashSource:  hashsource.NewDaily("rpc-test", clock),
		Clock:       clock,
		ProgramID:   types.Pubkey{0xc0},
		Target:      target,
		ProofReward: types.ProofReward,
	})
	require.NoError(t, err)

	srv, err := NewServer(Config{Logger: logger.NewTesting(), Program: p, ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, program: p, clock: clock}
}

func (e *testEnv) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func requireStatus(t *testing.T, err error, code int) {
	t.Helper()
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, code, se.StatusCode)
}

func proofPayload(pk types.Pubkey, nonce uint32) []byte {
	p := consensus.Payload{Pubkey: pk, Nonce: nonce, Version: 1}
	return p.Serialize()
}

func TestServer_NotInitialized(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusNotFound, env.get(t, "/status").StatusCode)
}

func TestServer_ProofFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.program.Initialize(ctx))

	pk, key, err := wallet.GenerateKeyPair()
	require.NoError(t, err)
	client := NewClient(env.server.URL, key)

	require.Equal(t, http.StatusCreated, env.post(t, "/users/"+pk.String(), "").StatusCode)
	require.Equal(t, http.StatusConflict, env.post(t, "/users/"+pk.String(), "").StatusCode)

	hashes, err := client.GetValidBlockhashes(ctx)
	require.NoError(t, err)
	require.Equal(t, hashes[:32], hashes[32:])

	require.NoError(t, client.SubmitProof(ctx, pk, proofPayload(pk, 1)))
	requireStatus(t, client.SubmitProof(ctx, pk, proofPayload(pk, 1)), http.StatusConflict)
	requireStatus(t, client.SubmitProof(ctx, pk, proofPayload(pk, 1)[:40]), http.StatusBadRequest)

	resp := env.get(t, "/users/"+pk.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user UserResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	require.Equal(t, types.Amount(2), user.Balance)
	require.Equal(t, 1, user.Proofs)
	require.Equal(t, ledger.MinSize, user.Space)

	grow := fmt.Sprintf(`{"space":%d}`, ledger.SpaceForCapacity(4))
	require.Equal(t, http.StatusNoContent, env.post(t, "/users/"+pk.String()+"/grow", grow).StatusCode)
	require.Equal(t, http.StatusBadRequest, env.post(t, "/users/"+pk.String()+"/grow", `{"space":100}`).StatusCode)
}

func TestServer_RejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.program.Initialize(ctx))

	pk, _, err := wallet.GenerateKeyPair()
	require.NoError(t, err)
	_, otherKey, err := wallet.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, env.program.CreateUserData(pk, ledger.MinSize))

	client := NewClient(env.server.URL, otherKey)
	requireStatus(t, client.SubmitProof(ctx, pk, proofPayload(pk, 1)), http.StatusUnauthorized)
}

func TestServer_DistributionClaimAndTransfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.program.Initialize(ctx))

	alice, aliceKey, err := wallet.GenerateKeyPair()
	require.NoError(t, err)
	bob, _, err := wallet.GenerateKeyPair()
	require.NoError(t, err)
	client := NewClient(env.server.URL, aliceKey)

	require.NoError(t, env.program.CreateUserData(alice, ledger.MinSize))
	require.NoError(t, env.program.CreateUserData(bob, ledger.MinSize))
	require.NoError(t, client.SubmitProof(ctx, alice, proofPayload(alice, 1)))

	_, err = client.DailyDistribution(ctx)
	requireStatus(t, err, http.StatusConflict)

	env.clock.Advance(24 * time.Hour)
	values, err := client.DailyDistribution(ctx)
	require.NoError(t, err)
	require.Equal(t, types.Amount(146_000), values.Interest)
	require.Equal(t, types.Amount(146_000), values.FutureUBI)

	// Alice has not claimed today yet.
	requireStatus(t, client.Transfer(ctx, bob, 1), http.StatusConflict)

	resp := env.post(t, "/users/"+alice.String()+"/claim", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var claim ClaimResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&claim))
	require.Equal(t, types.Amount(146_000), claim.Interest)

	require.Equal(t, http.StatusOK, env.post(t, "/users/"+bob.String()+"/claim", "").StatusCode)
	require.NoError(t, client.Transfer(ctx, bob, 10))

	resp = env.get(t, "/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, uint64(2), status.HighWaterMark)
	require.Equal(t, types.Amount(146_000), status.Banks["future_ubi"].Balance)

	require.Equal(t, http.StatusOK, env.post(t, "/users/"+bob.String()+"/verify", "").StatusCode)
	require.Equal(t, http.StatusConflict, env.post(t, "/users/"+bob.String()+"/verify", "").StatusCode)
}

func TestServer_BadRequests(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.program.Initialize(context.Background()))

	require.Equal(t, http.StatusBadRequest, env.get(t, "/users/not-a-key").StatusCode)
	require.Equal(t, http.StatusBadRequest, env.post(t, "/proofs", "{").StatusCode)
	require.Equal(t, http.StatusNotFound, env.get(t, "/users/"+types.Pubkey{9}.String()).StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{consensus.ErrInvalidPayloadSize, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", ledger.ErrInvalidSpace), http.StatusBadRequest},
		{program.ErrUserDataNotFound, http.StatusNotFound},
		{consensus.ErrStaleBlockhash, http.StatusConflict},
		{distribution.ErrDistributionAlreadyRun, http.StatusConflict},
		{token.ErrInsufficientFunds, http.StatusConflict},
		{distribution.ErrSupplyRegression, http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
