package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/liftmpc/app"
	"github.com/kilianp07/liftmpc/config"
	coremon "github.com/kilianp07/liftmpc/core/monitoring"
	"github.com/kilianp07/liftmpc/infra/logger"
	"github.com/kilianp07/liftmpc/infra/monitoring"
	"github.com/kilianp07/liftmpc/infra/mqtt"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduling service",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("main")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		log.Warnf("sentry disabled: %v", err)
	} else {
		coremon.Init(mon)
	}

	connect := app.PahoConnector(cfg.MQTT)
	if !cfg.MQTT.Enabled() {
		log.Warnf("no mqtt broker configured, assignments go to an in-memory client")
		connect = app.MockConnector(mqtt.NewMockClient())
	}
	svc, err := app.New(cfg, connect)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
