package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/liftmpc/config"
	"github.com/kilianp07/liftmpc/core/prediction"
)

var (
	predictOrigin  int
	predictAt      string
	predictWeights string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Print the top destination hypotheses for a hall call",
	RunE:  predict,
}

func init() {
	predictCmd.Flags().IntVar(&predictOrigin, "origin", 1, "floor of the hall call")
	predictCmd.Flags().StringVar(&predictAt, "at", "", "call time in RFC3339 (default now)")
	predictCmd.Flags().StringVar(&predictWeights, "weights", "", "weights file overriding the configured model")
	rootCmd.AddCommand(predictCmd)
}

func predict(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	at := time.Now()
	if predictAt != "" {
		if at, err = time.Parse(time.RFC3339, predictAt); err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
	}

	var p prediction.Predictor = prediction.Uniform{FloorCount: cfg.Building.Floors}
	switch {
	case predictWeights != "":
		w, err := prediction.LoadWeights(predictWeights)
		if err != nil {
			return err
		}
		m, err := prediction.NewLogisticModel(w, cfg.Scheduler.TopK)
		if err != nil {
			return err
		}
		if err := prediction.CheckFloors(m, cfg.Building.Floors); err != nil {
			return err
		}
		p = m
	case cfg.Prediction.Type != "uniform":
		if p, err = cfg.BuildPredictor(); err != nil {
			return err
		}
	}

	tod, wd := prediction.At(at)
	dist, err := p.Predict(predictOrigin, tod, wd)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(dist)
}
