// Command paritynode runs a single peer in the redundant byte-storage
// mesh: it registers with a directory service, bootstraps its store from
// peers (or loads a pre-seeded data file), and serves block requests
// while continuously repairing corruption via peer majority vote.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/parity-mesh/paritynode/internal/metrics"
	"github.com/parity-mesh/paritynode/internal/node"
	"github.com/parity-mesh/paritynode/internal/ui"
)

func main() {
	app := &cli.App{
		Name:   "paritynode",
		Usage:  "run a peer in the redundant byte-storage mesh",
		Flags:  Flags,
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "paritynode:", err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	logger := newLogger(cliCtx.String(LogLevelFlag.Name))
	log.SetDefault(logger)

	cfg, err := configFromFlags(cliCtx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	mx := metrics.New()
	stopMetrics := serveMetrics(logger, cliCtx.String(MetricsAddrFlag.Name), mx)
	defer stopMetrics()

	n, err := node.New(logger, cfg,
		node.WithMetrics(mx),
		node.WithReporter(ui.New(os.Stdout)),
	)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := n.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		return fmt.Errorf("paritynode: %w", err)
	}
	return nil
}

func configFromFlags(cliCtx *cli.Context) (node.Config, error) {
	cfg := node.Config{
		DirectoryHost:  cliCtx.String(DirectoryHostFlag.Name),
		DirectoryPort:  cliCtx.Int(DirectoryPortFlag.Name),
		NodePort:       cliCtx.Int(NodePortFlag.Name),
		BlockSize:      cliCtx.Int(BlockSizeFlag.Name),
		Scanners:       cliCtx.Int(ScannersFlag.Name),
		CorrectorRate:  cliCtx.Float64(CorrectorRateFlag.Name),
		CorrectorBurst: cliCtx.Int(CorrectorBurstFlag.Name),
		MetricsAddr:    cliCtx.String(MetricsAddrFlag.Name),
	}
	if path := cliCtx.String(DataFileFlag.Name); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return node.Config{}, fmt.Errorf("paritynode: read data file %s: %w", path, err)
		}
		cfg.DataBytes = raw
	}
	return cfg, nil
}

func serveMetrics(logger log.Logger, addr string, mx *metrics.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mx.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return func() { _ = srv.Close() }
}

func newLogger(levelStr string) log.Logger {
	handler := log.NewGlogHandler(log.NewTerminalHandlerWithLevel(os.Stderr, parseLevel(levelStr), true))
	handler.Verbosity(parseLevel(levelStr))
	return log.NewLogger(handler)
}

func parseLevel(s string) log.Level {
	switch s {
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
