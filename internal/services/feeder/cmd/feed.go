package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var feedTimeout time.Duration

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Dispense the configured quantity now",
	Long:  `Asks the running service to feed immediately. The daily scheduled feed still fires.`,
	RunE:  runFeed,
}

func init() {
	feedCmd.Flags().DurationVar(&feedTimeout, "timeout", 60*time.Second, "how long to wait for the dispense to finish")
	rootCmd.AddCommand(feedCmd)
}

func runFeed(cmd *cobra.Command, _ []string) error {
	c, closeFn, err := controlClient()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(cmd.Context(), feedTimeout)
	defer cancel()

	res, err := c.FeedNow(ctx)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	if res.Feed != nil {
		fmt.Printf("%s: %d/%d units x %dms (%s)\n", res.Feed.ID, res.Feed.UnitsDispensed,
			res.Feed.Quantity, res.Feed.UnitDurationMs, res.Feed.Status)
	}
	if !res.OK {
		return fmt.Errorf("feed failed: %s", res.Error)
	}
	return nil
}
