package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/feeder/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded feeds",
	Long:  `Reads the local feed history database, newest first.`,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of feeds to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := history.New(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer db.Close()

	events, err := db.List(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("listing feeds: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("No feeds recorded")
		return nil
	}

	fmt.Println("----------------------------------------------------------------")
	fmt.Printf("%-20s  %-8s  %-4s  %7s  %6s  %s\n", "Finished", "Trigger", "", "Units", "ms", "Reason")
	fmt.Println("----------------------------------------------------------------")
	for _, e := range events {
		fmt.Printf("%-20s  %-8s  %-4s  %3d/%-3d  %6d  %s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Trigger, e.Status,
			e.UnitsDispensed, e.Quantity, e.UnitDurationMs, e.Reason)
	}
	total, err := db.Count(cmd.Context())
	if err == nil {
		fmt.Println("----------------------------------------------------------------")
		fmt.Printf("Showing %d of %d feeds\n", len(events), total)
	}
	return nil
}
