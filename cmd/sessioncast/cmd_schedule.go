/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/sessioncast/internal/catalog"
	"github.com/friendsincode/sessioncast/internal/scheduler"
)

var scheduleAll bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show the triggers the timetable would install",
	Long: `Read the sessions timetable and list each week 1 and week 2 fire time.

Fire times already in the past are skipped by serve; they are hidden here
unless --all is given. Rows that cannot be parsed are reported as warnings.`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleAll, "all", false, "Include fire times in the past")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	slots, rowErrs, err := catalog.ReadTimetable(cfg.SessionsFile)
	if err != nil {
		return err
	}
	for _, rowErr := range rowErrs {
		logger.Warn().Err(rowErr.Err).Int("line", rowErr.Line).Msg("skipping timetable row")
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tNAME\tWEEK\tFIRE AT (UTC)\tSTATE")
	scheduled := 0
	for _, p := range scheduler.Plan(slots, time.Now()) {
		state := "scheduled"
		if p.Past {
			if !scheduleAll {
				continue
			}
			state = "past"
		} else {
			scheduled++
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", p.Key.SessionID, p.Key.SessionName, p.Week, p.Key.FireAt.UTC().Format(time.DateTime), state)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d trigger(s) would be scheduled, %d row(s) skipped\n", scheduled, len(rowErrs))
	return nil
}
