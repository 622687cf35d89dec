package prediction

import (
	"fmt"

	"github.com/kilianp07/liftmpc/core/factory"
)

var registry = factory.NewRegistry[Predictor]()

type uniformConf struct {
	Floors int `json:"floors"`
}

type logisticConf struct {
	WeightsPath string   `json:"weights_path"`
	Weights     *Weights `json:"weights"`
	TopK        int      `json:"top_k"`
}

func init() {
	_ = registry.Register("uniform", func(conf map[string]any) (Predictor, error) {
		var c uniformConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Floors < 2 {
			return nil, fmt.Errorf("uniform predictor: floors must be at least 2")
		}
		return Uniform{FloorCount: c.Floors}, nil
	})
	_ = registry.Register("logistic", func(conf map[string]any) (Predictor, error) {
		var c logisticConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		var w Weights
		switch {
		case c.Weights != nil:
			w = *c.Weights
		case c.WeightsPath != "":
			var err error
			if w, err = LoadWeights(c.WeightsPath); err != nil {
				return nil, fmt.Errorf("logistic predictor: %w", err)
			}
		default:
			return nil, fmt.Errorf("logistic predictor: weights or weights_path required")
		}
		return NewLogisticModel(w, c.TopK)
	})
}

// RegisterPredictor adds a predictor factory identified by name.
func RegisterPredictor(name string, f factory.Factory[Predictor]) error {
	return registry.Register(name, f)
}

// NewPredictor builds the predictor described by cfg.
func NewPredictor(cfg factory.ModuleConfig) (Predictor, error) {
	return registry.Create(cfg)
}

// CheckFloors rejects a predictor built for a different building.
func CheckFloors(p Predictor, floors int) error {
	if p.Floors() != floors {
		return fmt.Errorf("predictor covers %d floors, building has %d", p.Floors(), floors)
	}
	return nil
}
