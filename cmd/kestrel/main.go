// cmd/kestrel/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/api"
	"github.com/kestrelhq/kestrel/internal/collector"
	"github.com/kestrelhq/kestrel/internal/config"
	"github.com/kestrelhq/kestrel/internal/engine"
	"github.com/kestrelhq/kestrel/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kestrel",
	Short: "Host-based threat detection agent",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent: all collectors plus the query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logging.New(cfg.LogLevel)

		eng := buildEngine(cfg, log)
		if err := eng.Initialize(); err != nil {
			return fmt.Errorf("initialize engine: %w", err)
		}
		if err := eng.Start(); err != nil {
			return fmt.Errorf("start engine: %w", err)
		}

		srv := api.NewServer(cfg.ListenAddr, eng, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = srv.Run(ctx)
		eng.Stop()
		return err
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one synchronous scan cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logging.New(cfg.LogLevel)

		eng := buildEngine(cfg, log)
		events, err := eng.RunSingleScan(cmd.Context())
		if err != nil {
			return err
		}
		_, alerts := eng.Stats()
		eng.Stop()

		fmt.Printf("Scan complete: %d events, %d alerts\n", len(events), alerts)
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func buildEngine(cfg *config.Config, log zerolog.Logger) *engine.Engine {
	collectors := []collector.Collector{
		collector.NewProcessCollector(cfg.Process.Interval.Std(),
			cfg.Process.CPUThreshold, cfg.Process.MemoryThreshold, log),
		collector.NewNetworkCollector(cfg.Network.Interval.Std(), log),
		collector.NewFileCollector(cfg.File.Interval.Std(), cfg.File.WatchPaths, log),
	}
	system := collector.NewSystemCollector(cfg.System.Interval.Std(), log)

	return engine.New(cfg.DBPath, collectors, system, log)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
