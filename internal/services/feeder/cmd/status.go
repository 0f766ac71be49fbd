package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the service status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw status document")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	c, closeFn, err := controlClient()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	st, err := c.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	local := st.LocalTime
	if local == "" {
		local = "--:--:--"
	}
	fmt.Printf("Device:    %s\n", st.DeviceID)
	fmt.Printf("Schedule:  %s  x%d  %dms\n", st.Schedule.Time, st.Schedule.Quantity, st.Schedule.DispenseDurationMs)
	fmt.Printf("Local:     %s\n", local)
	fmt.Printf("Running:   %v  paused=%v\n", st.Running, st.Paused)
	fmt.Printf("Due soon:  %v  fed=%v\n", st.DueSoon, st.Fed)
	if st.LastFeed != nil {
		fmt.Printf("Last feed: %s %s %d/%d units at %s\n", st.LastFeed.Trigger, st.LastFeed.Status,
			st.LastFeed.UnitsDispensed, st.LastFeed.Quantity, st.LastFeed.Timestamp.Format(time.RFC3339))
	}
	if st.LastError != "" {
		fmt.Printf("Error:     %s\n", st.LastError)
	}
	return nil
}
