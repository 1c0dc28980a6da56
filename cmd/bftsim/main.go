// Command bftsim is the batch runner collaborator of spec §6.2: it
// reads a configuration document, expands it into every
// (attacker, protocol, (N, f)) triple the document names, runs each
// triple repeat_time times through pkg/runner, and prints, per
// configuration, the run count, success rate, mean latency and mean
// delivered-message count. Failed runs are not broken down into
// failures and timeouts; the command exits non-zero if any run failed.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jabolina/bft-sim/internal/config"
	"github.com/jabolina/bft-sim/pkg/replica"
	"github.com/jabolina/bft-sim/pkg/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var logDir string

	cmd := &cobra.Command{
		Use:   "bftsim",
		Short: "Run a batch of BFT consensus simulations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(configPath, logDir, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML or TOML batch configuration document")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "directory for per-configuration diagnostic log files (spec log_to_file)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runBatch(configPath, logDir string, out io.Writer) error {
	matrix, err := config.LoadMatrix(configPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector := runner.NewCollector(reg)

	anyFailure := false
	for _, cfg := range matrix.Expand() {
		log, closeLog, err := buildLogger(cfg, logDir)
		if err != nil {
			return err
		}
		results, _, err := runner.Run(cfg, log)
		if closeLog != nil {
			closeLog()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration (attacker=%s protocol=%s n=%d f=%d) aborted: %v\n",
				cfg.Attacker, cfg.Protocol, cfg.NodeNum, cfg.ByzantineNodeNum, err)
			anyFailure = true
			continue
		}
		collector.Record(cfg.Attacker, cfg.Protocol, cfg.NodeNum, cfg.ByzantineNodeNum, results)
		if !allSucceeded(results) {
			anyFailure = true
		}
	}

	if err := collector.WriteReport(out); err != nil {
		return err
	}
	if anyFailure {
		return fmt.Errorf("bftsim: one or more configurations failed or timed out")
	}
	return nil
}

func allSucceeded(results []runner.RunResult) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}

// buildLogger opens one append-only log file per configuration when
// log_to_file is set, named after a fresh uuid so concurrent batches
// never collide. All repeat_time runs of that configuration write to
// the same file; runs do not get separate files.
func buildLogger(cfg config.Config, logDir string) (replica.LogFunc, func(), error) {
	if !cfg.LogToFile {
		return replica.AsLogFunc(replica.NewLogrusLogger(nil)), nil, nil
	}
	if logDir == "" {
		logDir = "."
	}
	path := filepath.Join(logDir, fmt.Sprintf("bftsim-%s.log", uuid.NewString()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("bftsim: opening log file %s: %w", path, err)
	}
	logger := replica.NewLogrusLogger(f)
	return replica.AsLogFunc(logger), func() { f.Close() }, nil
}
