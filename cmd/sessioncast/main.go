/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/sessioncast/internal/config"
	"github.com/friendsincode/sessioncast/internal/engine"
	"github.com/friendsincode/sessioncast/internal/logbuffer"
	"github.com/friendsincode/sessioncast/internal/logging"
	"github.com/friendsincode/sessioncast/internal/version"
)

var (
	logger   zerolog.Logger
	cfg      *config.Config
	logs     *logbuffer.Buffer
	testMode bool
)

var rootCmd = &cobra.Command{
	Use:   "sessioncast",
	Short: "sessioncast - unattended conference session broadcaster",
	Long:  "sessioncast plays pre-recorded conference sessions on a timetable, announces each talk to chat channels and resumes interrupted sessions after a restart.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the broadcast scheduler",
	Long:  "Resume any interrupted session, install the timetable and broadcast sessions as they come due",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&testMode, "test", false, "Test mode: post to the -test chat channels")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	if testMode {
		if err := os.Setenv("SESSIONCAST_TEST_MODE", "true"); err != nil {
			return err
		}
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logs = logbuffer.New(cfg.LogBufferSize)
	logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logs, nil))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Bool("test_mode", cfg.TestMode).Msg("sessioncast starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(ctx, cfg, engine.Options{Logs: logs}, logger)
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error().Err(err).Msg("shutdown cleanup failed")
		}
	}()

	if err := eng.Run(ctx); err != nil {
		return err
	}

	logger.Info().Msg("sessioncast stopped")
	return nil
}
