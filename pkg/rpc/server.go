// Package rpc exposes the program instructions over HTTP.
package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/compto-com/comptoken-program/pkg/core/consensus"
	"github.com/compto-com/comptoken-program/pkg/core/distribution"
	"github.com/compto-com/comptoken-program/pkg/core/ledger"
	"github.com/compto-com/comptoken-program/pkg/core/types"
	"github.com/compto-com/comptoken-program/pkg/metrics"
	"github.com/compto-com/comptoken-program/pkg/program"
	"github.com/compto-com/comptoken-program/pkg/token"
	"github.com/compto-com/comptoken-program/pkg/wallet"
)

type Config struct {
	Logger     *slog.Logger
	Program    *program.Program
	ListenAddr string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Program == nil {
		return errors.New("program is required")
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	return nil
}

type Server struct {
	log     *slog.Logger
	program *program.Program
	router  chi.Router
	srv     *http.Server
}

func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rpc config: %w", err)
	}
	s := &Server{
		log:     cfg.Logger,
		program: cfg.Program,
		router:  chi.NewRouter(),
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)

	s.router.Get("/status", s.handleStatus)
	s.router.Get("/blockhashes", s.handleBlockhashes)
	s.router.Post("/proofs", s.handleSubmitProof)
	s.router.Post("/distribution", s.handleDistribution)
	s.router.Post("/transfers", s.handleTransfer)
	s.router.Route("/users/{pubkey}", func(r chi.Router) {
		r.Get("/", s.handleGetUser)
		r.Post("/", s.handleCreateUser)
		r.Post("/grow", s.handleGrowUser)
		r.Post("/claim", s.handleClaim)
		r.Post("/verify", s.handleVerify)
	})
	s.router.Handle("/metrics", promhttp.Handler())
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("rpc: listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown rpc server: %w", err)
		}
		return nil
	}
}

type StatusResponse struct {
	ValidBlockhash       string          `json:"valid_blockhash"`
	ValidTime            int64           `json:"valid_time"`
	AnnouncedBlockhash   string          `json:"announced_blockhash"`
	AnnouncedTime        int64           `json:"announced_time"`
	Supply               types.Amount    `json:"supply"`
	YesterdaySupply      uint64          `json:"yesterday_supply"`
	HighWaterMark        uint64          `json:"high_water_mark"`
	LastDistributionTime int64           `json:"last_distribution_time"`
	VerifiedHumans       uint64          `json:"verified_humans"`
	LatestMultiplier     float64         `json:"latest_multiplier"`
	LatestUBIPerHead     uint64          `json:"latest_ubi_per_head"`
	Banks                map[string]Bank `json:"banks"`
}

type Bank struct {
	Address string       `json:"address"`
	Balance types.Amount `json:"balance"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.program.Status()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		ValidBlockhash:       st.Window.ValidHash.String(),
		ValidTime:            st.Window.ValidTime,
		AnnouncedBlockhash:   st.Window.AnnouncedHash.String(),
		AnnouncedTime:        st.Window.AnnouncedTime,
		Supply:               st.Supply,
		YesterdaySupply:      st.YesterdaySupply,
		HighWaterMark:        st.HighWaterMark,
		LastDistributionTime: st.LastDistributionTime,
		VerifiedHumans:       st.VerifiedHumans,
		LatestMultiplier:     st.LatestEntry.Multiplier,
		LatestUBIPerHead:     st.LatestEntry.UBIPerHead,
		Banks: map[string]Bank{
			"interest":           {Address: st.Banks.Interest.String(), Balance: st.BankBalances[0]},
			"verified_human_ubi": {Address: st.Banks.VerifiedHumanUBI.String(), Balance: st.BankBalances[1]},
			"future_ubi":         {Address: st.Banks.FutureUBI.String(), Balance: st.BankBalances[2]},
		},
	})
}

type BlockhashesResponse struct {
	Raw       string `json:"raw"`
	Valid     string `json:"valid"`
	Announced string `json:"announced"`
}

func (s *Server) handleBlockhashes(w http.ResponseWriter, r *http.Request) {
	hashes, err := s.program.GetValidBlockhashes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	valid, _ := types.HashFromBytes(hashes[:types.HashSize])
	announced, _ := types.HashFromBytes(hashes[types.HashSize:])
	writeJSON(w, http.StatusOK, BlockhashesResponse{
		Raw:       hex.EncodeToString(hashes[:]),
		Valid:     valid.String(),
		Announced: announced.String(),
	})
}

// POST /proofs
type ProofRequest struct {
	Wallet    string `json:"wallet"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

type ProofResponse struct {
	Hash string `json:"hash"`
}

func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	var req ProofRequest
	if !s.decode(w, r, &req) {
		return
	}
	pk, err := types.PubkeyFromBase58(req.Wallet)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	payload, err := hex.DecodeString(req.Payload)
	if err != nil {
		s.badRequest(w, fmt.Errorf("invalid payload hex: %w", err))
		return
	}
	if !s.verifySignature(w, pk, payload, req.Signature) {
		return
	}

	proof, err := s.program.SubmitProof(pk, payload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProofResponse{Hash: proof.Hash.String()})
}

type DistributionResponse struct {
	Interest         types.Amount `json:"interest"`
	VerifiedHumanUBI types.Amount `json:"verified_human_ubi"`
	FutureUBI        types.Amount `json:"future_ubi"`
}

func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	values, err := s.program.DailyDistribution(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DistributionResponse{
		Interest:         values.Interest,
		VerifiedHumanUBI: values.VerifiedHumanUBI,
		FutureUBI:        values.FutureUBI,
	})
}

// POST /transfers
type TransferRequest struct {
	From      string       `json:"from"`
	To        string       `json:"to"`
	Amount    types.Amount `json:"amount"`
	Signature string       `json:"signature"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !s.decode(w, r, &req) {
		return
	}
	from, err := types.PubkeyFromBase58(req.From)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	to, err := types.PubkeyFromBase58(req.To)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if !s.verifySignature(w, from, wallet.TransferMessage(from, to, req.Amount), req.Signature) {
		return
	}

	if err := s.program.Transfer(from, to, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SpaceRequest struct {
	Space int `json:"space"`
}

type UserResponse struct {
	Pubkey                string       `json:"pubkey"`
	Balance               types.Amount `json:"balance"`
	LastInterestPayoutDay int64        `json:"last_interest_payout_day"`
	IsVerifiedHuman       bool         `json:"is_verified_human"`
	TrackedBlockhash      string       `json:"tracked_blockhash"`
	Proofs                int          `json:"proofs"`
	Capacity              int          `json:"capacity"`
	Space                 int          `json:"space"`
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	pk, ok := s.pubkeyParam(w, r)
	if !ok {
		return
	}
	u, err := s.program.UserData(pk)
	if err != nil {
		s.writeError(w, err)
		return
	}
	balance, err := s.program.Balance(pk)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{
		Pubkey:                pk.String(),
		Balance:               balance,
		LastInterestPayoutDay: u.LastInterestPayoutDay,
		IsVerifiedHuman:       u.IsVerifiedHuman,
		TrackedBlockhash:      u.TrackedHash.String(),
		Proofs:                u.Len(),
		Capacity:              u.Capacity(),
		Space:                 u.Space(),
	})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	pk, ok := s.pubkeyParam(w, r)
	if !ok {
		return
	}
	req := SpaceRequest{Space: ledger.MinSize}
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	if err := s.program.CreateUserData(pk, req.Space); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleGrowUser(w http.ResponseWriter, r *http.Request) {
	pk, ok := s.pubkeyParam(w, r)
	if !ok {
		return
	}
	var req SpaceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.program.GrowUserData(pk, req.Space); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ClaimResponse struct {
	Interest types.Amount `json:"interest"`
	UBI      types.Amount `json:"ubi"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	pk, ok := s.pubkeyParam(w, r)
	if !ok {
		return
	}
	owed, err := s.program.GetOwedComptokens(pk)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClaimResponse{Interest: owed.Interest, UBI: owed.UBI})
}

type VerifyResponse struct {
	Share types.Amount `json:"share"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	pk, ok := s.pubkeyParam(w, r)
	if !ok {
		return
	}
	share, err := s.program.VerifyHuman(pk)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Share: share})
}

func (s *Server) pubkeyParam(w http.ResponseWriter, r *http.Request) (types.Pubkey, bool) {
	pk, err := types.PubkeyFromBase58(chi.URLParam(r, "pubkey"))
	if err != nil {
		s.badRequest(w, err)
		return types.Pubkey{}, false
	}
	return pk, true
}

func (s *Server) verifySignature(w http.ResponseWriter, signer types.Pubkey, msg []byte, sigHex string) bool {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		s.badRequest(w, fmt.Errorf("invalid signature hex: %w", err))
		return false
	}
	if err := wallet.Verify(signer, msg, sig); err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.badRequest(w, fmt.Errorf("invalid json: %w", err))
		return false
	}
	return true
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("rpc: request failed", "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// statusFor maps program errors onto HTTP statuses: malformed input is 400,
// a refused but well-formed request is 409, a missing account is 404 and
// everything else is 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, consensus.ErrInvalidPayloadSize),
		errors.Is(err, ledger.ErrInvalidSpace),
		errors.Is(err, ledger.ErrGrowthTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, program.ErrUserDataNotFound),
		errors.Is(err, program.ErrNotInitialized):
		return http.StatusNotFound
	case errors.Is(err, consensus.ErrInvalidProof),
		errors.Is(err, consensus.ErrStaleBlockhash),
		errors.Is(err, consensus.ErrPubkeyMismatch),
		errors.Is(err, ledger.ErrDuplicateProof),
		errors.Is(err, ledger.ErrStorageFull),
		errors.Is(err, distribution.ErrDistributionAlreadyRun),
		errors.Is(err, program.ErrUserDataExists),
		errors.Is(err, program.ErrAlreadyInitialized),
		errors.Is(err, program.ErrAlreadyVerified),
		errors.Is(err, program.ErrNotCurrent),
		errors.Is(err, token.ErrInsufficientFunds):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
