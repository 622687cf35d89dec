package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/liftmpc/app"
	"github.com/kilianp07/liftmpc/config"
	"github.com/kilianp07/liftmpc/infra/logger"
)

var (
	replayStep time.Duration
	replayMax  time.Duration
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Schedule a recorded traffic sample offline and print the objective",
	Args:  cobra.ExactArgs(1),
	RunE:  replay,
}

func init() {
	replayCmd.Flags().DurationVar(&replayStep, "step", time.Second, "scheduling period and simulation step")
	replayCmd.Flags().DurationVar(&replayMax, "max-duration", time.Hour, "simulated time allowed after the last arrival")
	rootCmd.AddCommand(replayCmd)
}

func replay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rf, err := app.LoadReplay(args[0])
	if err != nil {
		return err
	}
	rep, err := app.Replay(ctx, cfg, rf, app.ReplayOptions{
		Step:        replayStep,
		MaxDuration: replayMax,
		Logger:      logger.New("replay"),
	})
	if err != nil {
		return err
	}
	s := rep.Summary
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "served:          %d\n", s.Served)
	fmt.Fprintf(out, "avg journey:     %s\n", s.AvgPassengerTime.Round(time.Millisecond))
	fmt.Fprintf(out, "total wait:      %s\n", s.TotalWait.Round(time.Millisecond))
	fmt.Fprintf(out, "total in cab:    %s\n", s.TotalInCab.Round(time.Millisecond))
	fmt.Fprintf(out, "energy:          %.0f J\n", s.Energy)
	fmt.Fprintf(out, "idle:            %s\n", s.IdleTime.Round(time.Second))
	fmt.Fprintf(out, "objective:       %.3f\n", s.Objective)
	fmt.Fprintf(out, "ticks/deferred:  %d/%d\n", rep.Ticks, rep.Deferred)
	if rep.Degraded {
		fmt.Fprintln(out, "note: ran without a destination model")
	}
	return nil
}
