package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/feeder/internal/model"
	"github.com/LeonardoBeccarini/feeder/internal/model/messages"
)

var (
	setTime     string
	setQuantity string
	setDuration string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show or change the feeding schedule",
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active schedule",
	RunE:  runScheduleShow,
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more schedule fields",
	Long: `Each field is validated on its own: valid fields are applied and saved,
invalid ones keep their current value. Omitted fields are left untouched.`,
	Example: `  feeder schedule set --time 07:30
  feeder schedule set --quantity 3 --duration-ms 1500`,
	RunE: runScheduleSet,
}

func init() {
	scheduleSetCmd.Flags().StringVar(&setTime, "time", "", "feeding time HH:MM")
	scheduleSetCmd.Flags().StringVar(&setQuantity, "quantity", "", "units per feed, 1-9")
	scheduleSetCmd.Flags().StringVar(&setDuration, "duration-ms", "", "actuation per unit in ms, 1-9999")
	scheduleCmd.AddCommand(scheduleShowCmd, scheduleSetCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleShow(cmd *cobra.Command, _ []string) error {
	c, closeFn, err := controlClient()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	st, err := c.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	printView(st.Schedule)
	return nil
}

func runScheduleSet(cmd *cobra.Command, _ []string) error {
	if setTime == "" && setQuantity == "" && setDuration == "" {
		return fmt.Errorf("nothing to set: pass --time, --quantity or --duration-ms")
	}
	c, closeFn, err := controlClient()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	res, err := c.UpdateSchedule(ctx, messages.ConfigUpdate{
		RequestID:          uuid.NewString(),
		Time:               setTime,
		Quantity:           setQuantity,
		DispenseDurationMs: setDuration,
	})
	if err != nil {
		return fmt.Errorf("schedule set: %w", err)
	}
	if res.Update != nil {
		for _, f := range res.Update.Fields {
			switch f.Status {
			case model.FieldRejected:
				fmt.Printf("  %-18s rejected (%s), kept %s\n", f.Field, f.Reason, f.Value)
			case model.FieldAccepted:
				fmt.Printf("  %-18s set to %s\n", f.Field, f.Value)
			}
		}
		printView(res.Update.Schedule)
	}
	if !res.OK {
		return fmt.Errorf("schedule set: %s", res.Error)
	}
	return nil
}

func printView(v messages.ScheduleView) {
	fmt.Printf("time=%s quantity=%d dispenseDurationMs=%d\n", v.Time, v.Quantity, v.DispenseDurationMs)
}
