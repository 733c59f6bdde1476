// Command solver runs the cross-chain relay loop described in
// spec.md: watch every configured chain for unfulfilled swap
// requests, evaluate which are worth relaying, and execute them
// against the destination chain's router.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/onlyswaps/solver/internal/app"
	"github.com/onlyswaps/solver/internal/chain"
	"github.com/onlyswaps/solver/internal/config"
	"github.com/onlyswaps/solver/internal/executor"
	"github.com/onlyswaps/solver/internal/inflight"
	"github.com/onlyswaps/solver/internal/journal"
	"github.com/onlyswaps/solver/internal/solver"
	"github.com/onlyswaps/solver/internal/solverv2"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to the solver's TOML config file",
	}
	privateKeyFlag = &cli.StringFlag{
		Name:    "private-key",
		Usage:   "hex-encoded secp256k1 private key for the solver's wallet",
		EnvVars: []string{"SOLVER_PRIVATE_KEY"},
	}
	envFileFlag = &cli.StringFlag{
		Name:  "env-file",
		Usage: "optional .env file to load before reading environment fallbacks",
		Value: ".env",
	}
)

func main() {
	cliApp := &cli.App{
		Name:   "solver",
		Usage:  "cross-chain swap solver",
		Flags:  []cli.Flag{configFlag, privateKeyFlag, envFileFlag},
		Action: run,
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.Error("solver exited", "err", err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	_ = godotenv.Load(cliCtx.String(envFileFlag.Name))

	configPath, err := config.ResolvePath(cliCtx.String(configFlag.Name))
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	setupLogging(cfg)
	log.Info("loaded config", "path", configPath, "networks", len(cfg.Networks), "evaluator", cfg.EvaluatorVariant())

	// Flags (and their EnvVars) are parsed before the .env file above is
	// loaded, so re-check the environment for a key it may have supplied.
	rawKey := cliCtx.String(privateKeyFlag.Name)
	if rawKey == "" {
		rawKey = os.Getenv("SOLVER_PRIVATE_KEY")
	}
	privateKey, err := parsePrivateKey(rawKey)
	if err != nil {
		return fmt.Errorf("private key: %w", err)
	}

	ctx := context.Background()

	clients, execClients, err := buildChainClients(ctx, cfg, privateKey)
	if err != nil {
		return fmt.Errorf("build chain clients: %w", err)
	}

	var j *journal.Journal
	if cfg.Agent.JournalPath != "" {
		j, err = journal.Open(cfg.Agent.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
	}

	inFlight := inflight.New()
	exec := executor.New(execClients, inFlight, journalOrNil(j))
	evaluator := buildEvaluator(cfg)

	sup := app.New(clients, evaluator, exec, inFlight)
	if err := sup.Run(ctx); err != nil {
		return fmt.Errorf("supervisor exited: %w", err)
	}
	return nil
}

// journalOrNil returns a nil executor.Journal interface value when j is
// nil, rather than a non-nil interface wrapping a nil *journal.Journal.
func journalOrNil(j *journal.Journal) executor.Journal {
	if j == nil {
		return nil
	}
	return j
}

func buildChainClients(ctx context.Context, cfg *config.Config, privateKey *ecdsa.PrivateKey) (map[uint64]app.ChainClient, map[uint64]executor.ChainClient, error) {
	appClients := make(map[uint64]app.ChainClient, len(cfg.Networks))
	execClients := make(map[uint64]executor.ChainClient, len(cfg.Networks))

	for _, net := range cfg.Networks {
		c, err := chain.NewClient(ctx, chain.Config{
			ChainID:    net.ChainID,
			RPCURL:     net.RPCURL,
			RouterAddr: net.RouterAddr(),
			Tokens:     net.TokenAddresses(),
		}, privateKey)
		if err != nil {
			return nil, nil, fmt.Errorf("chain %d: %w", net.ChainID, err)
		}
		appClients[net.ChainID] = c
		execClients[net.ChainID] = c
	}
	return appClients, execClients, nil
}

func buildEvaluator(cfg *config.Config) app.Evaluator {
	switch cfg.EvaluatorVariant() {
	case config.EvaluatorScored:
		return solverv2.New(solverv2.Options{})
	default:
		return solver.New()
	}
}

func setupLogging(cfg *config.Config) {
	lvl := parseLogLevel(cfg.Agent.LogLevel)
	var handler slog.Handler
	if cfg.Agent.LogJSON {
		handler = log.JSONHandlerWithLevel(os.Stderr, lvl)
	} else {
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, lvl, false)
	}
	log.SetDefault(log.NewLogger(handler))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	case "crit":
		return log.LevelCrit
	default:
		return log.LevelInfo
	}
}

// parsePrivateKey accepts a hex private key with or without the 0x
// prefix, per spec.md §6.
func parsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	if raw == "" {
		return nil, fmt.Errorf("no private key given (use --private-key or SOLVER_PRIVATE_KEY)")
	}
	raw = strings.TrimPrefix(raw, "0x")
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}
