/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/sessioncast/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted playback status",
	Long: `Print the playback status record as JSON.

A non-zero playback_number means the session was interrupted and will be
resumed at that item on the next serve.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	ctx := context.Background()
	store, err := state.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open status store: %w", err)
	}
	defer store.Close()

	status, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load status: %w", err)
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
