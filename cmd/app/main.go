package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"SimEcon/internal/di"
	"SimEcon/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "simecon",
	Short:         "Economic simulation engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation host and the operator API",
	RunE:  runServe,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Load every persisted document and print its health",
	RunE:  runHealth,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	// Wire DI: Initialize all dependencies
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return app.Run(ctx)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	sim := di.NewOfflineSimulation(cfg)
	loadErr := sim.LoadAll()

	report := sim.Health()
	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "data dir: %s\n", cfg.DataDir)
	unhealthy := 0
	for _, name := range names {
		h := report[name]
		if !h.Healthy {
			unhealthy++
		}
		fmt.Fprintf(out, "  %-18s %s\n", name, h)
	}
	if loadErr != nil {
		fmt.Fprintf(out, "load errors: %v\n", loadErr)
	}
	if unhealthy > 0 {
		return fmt.Errorf("%d subsystem(s) unhealthy", unhealthy)
	}
	return nil
}
