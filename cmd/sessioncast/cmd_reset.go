/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friendsincode/sessioncast/internal/models"
	"github.com/friendsincode/sessioncast/internal/state"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the playback status to idle",
	Long: `Reset the persisted playback status to idle.

An interrupted session will not be resumed on the next serve.

Examples:
  # Interactive reset (will prompt for confirmation)
  sessioncast reset

  # Force reset without confirmation
  sessioncast reset --force
`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	ctx := context.Background()
	store, err := state.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open status store: %w", err)
	}
	defer store.Close()

	current, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load status: %w", err)
	}
	if current.IsIdle() {
		fmt.Fprintln(cmd.OutOrStdout(), "Playback status is already idle.")
		return nil
	}

	if !resetForce {
		fmt.Printf("Session %d (%s) is recorded at item %d.\n", current.SessionID, current.SessionName, current.Position)
		fmt.Print("Discard it and reset to idle? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	if err := store.Save(ctx, models.IdleStatus()); err != nil {
		return fmt.Errorf("save idle status: %w", err)
	}

	logger.Info().Int("session", current.SessionID).Int("position", current.Position).Msg("playback status reset to idle")
	fmt.Fprintln(cmd.OutOrStdout(), "Playback status reset to idle.")
	return nil
}
