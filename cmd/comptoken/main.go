package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/compto-com/comptoken-program/pkg/config"
	"github.com/compto-com/comptoken-program/pkg/core/consensus"
	"github.com/compto-com/comptoken-program/pkg/core/distribution"
	"github.com/compto-com/comptoken-program/pkg/core/types"
	"github.com/compto-com/comptoken-program/pkg/hashsource"
	"github.com/compto-com/comptoken-program/pkg/logger"
	"github.com/compto-com/comptoken-program/pkg/metrics"
	"github.com/compto-com/comptoken-program/pkg/miner"
	"github.com/compto-com/comptoken-program/pkg/program"
	"github.com/compto-com/comptoken-program/pkg/rpc"
	"github.com/compto-com/comptoken-program/pkg/store"
	"github.com/compto-com/comptoken-program/pkg/wallet"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: comptoken [run|mine|keygen|distribute] <args>")
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runNode(os.Args[2:])
	case "mine":
		err = runMiner(os.Args[2:])
	case "keygen":
		err = runKeygen(os.Args[2:])
	case "distribute":
		err = runDistribute(os.Args[2:])
	default:
		err = fmt.Errorf("unknown command %q", os.Args[1])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runNode(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFlag := fs.String("config", "", "path to a TOML config file")
	verboseFlag := fs.Bool("verbose", false, "enable verbose (debug) logging")
	listenFlag := fs.String("listen", "", "HTTP listen address (overrides config)")
	dataDirFlag := fs.String("data-dir", "", "badger data directory, empty for in-memory (overrides config)")
	autoDistributeFlag := fs.Bool("auto-distribute", true, "run the daily distribution at each day boundary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logger.New(*verboseFlag)

	// 1. Configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if fs.Changed("listen") {
		cfg.ListenAddr = *listenFlag
	}
	if fs.Changed("data-dir") {
		cfg.DataDir = *dataDirFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	target, _ := cfg.DifficultyTarget()
	programID, _ := cfg.Program()
	metrics.BuildInfo.WithLabelValues(version, cfg.Name).Set(1)

	// 2. Storage
	db, err := store.NewBadgerStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	// 3. Network hash source
	clock := clockwork.NewRealClock()
	var source hashsource.Source
	if cfg.SolanaRPC != "" {
		source = hashsource.NewRPCSource(cfg.SolanaRPC, log)
	} else {
		log.Warn("no solana rpc configured, deriving blockhashes locally", "seed", cfg.Name)
		source = hashsource.NewDaily(cfg.Name, clock)
	}

	// 4. Program
	prog, err := program.New(program.Config{
		Logger:               log,
		Store:                db,
		HashSource:           source,
		Clock:                clock,
		ProgramID:            programID,
		Target:               target,
		ProofReward:          types.Amount(cfg.ProofReward),
		AnnouncementInterval: cfg.AnnouncementInterval,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := prog.Initialize(ctx); err != nil && !errors.Is(err, program.ErrAlreadyInitialized) {
		return fmt.Errorf("initialize program: %w", err)
	}

	// 5. HTTP server
	srv, err := rpc.NewServer(rpc.Config{Logger: log, Program: prog, ListenAddr: cfg.ListenAddr})
	if err != nil {
		return err
	}

	log.Info("comptoken: node started", "network", cfg.Name, "program", programID, "target", target)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if *autoDistributeFlag {
		g.Go(func() error {
			return distributeDaily(gctx, log, prog, clock)
		})
	}
	return g.Wait()
}

// distributeDaily runs the daily distribution shortly after every day
// boundary until ctx is done.
func distributeDaily(ctx context.Context, log *slog.Logger, prog *program.Program, clock clockwork.Clock) error {
	for {
		if _, err := prog.DailyDistribution(ctx); err != nil && !errors.Is(err, distribution.ErrDistributionAlreadyRun) {
			log.Error("comptoken: daily distribution failed", "error", err)
		}

		next := time.Unix(types.NormalizeTime(clock.Now().Unix())+types.SecPerDay, 0).Add(time.Second)
		select {
		case <-ctx.Done():
			return nil
		case <-clock.After(next.Sub(clock.Now())):
		}
	}
}

func runMiner(args []string) error {
	fs := flag.NewFlagSet("mine", flag.ExitOnError)
	configFlag := fs.String("config", "", "path to a TOML config file")
	verboseFlag := fs.Bool("verbose", false, "enable verbose (debug) logging")
	keyFlag := fs.String("key", "wallet.key", "wallet private key file")
	nodeFlag := fs.String("node", "http://127.0.0.1:8899", "node HTTP address")
	workersFlag := fs.Int("workers", 0, "mining goroutines (default: config, then CPU count)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logger.New(*verboseFlag)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if fs.Changed("workers") {
		cfg.MinerWorkers = *workersFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	target, _ := cfg.DifficultyTarget()

	key, err := wallet.LoadKey(*keyFlag)
	if err != nil {
		return fmt.Errorf("load wallet key: %w", err)
	}

	hasher := consensus.NewSHA256Hasher()
	defer hasher.Close()

	m, err := miner.New(miner.Config{
		Logger:  log,
		Hasher:  hasher,
		Target:  target,
		Wallet:  wallet.Pubkey(key),
		Network: rpc.NewClient(*nodeFlag, key),
		Workers: cfg.MinerWorkers,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m.Start()
	<-ctx.Done()
	m.Stop()
	return nil
}

func runKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	outFlag := fs.String("out", "wallet.key", "where to write the private key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*outFlag); err == nil {
		return fmt.Errorf("%s already exists", *outFlag)
	}
	pk, key, err := wallet.GenerateKeyPair()
	if err != nil {
		return err
	}
	if err := wallet.SaveKey(*outFlag, key); err != nil {
		return err
	}
	fmt.Println(pk)
	return nil
}

func runDistribute(args []string) error {
	fs := flag.NewFlagSet("distribute", flag.ExitOnError)
	nodeFlag := fs.String("node", "http://127.0.0.1:8899", "node HTTP address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	values, err := rpc.NewClient(*nodeFlag, nil).DailyDistribution(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("interest=%d verified_human_ubi=%d future_ubi=%d\n", values.Interest, values.VerifiedHumanUBI, values.FutureUBI)
	return nil
}
