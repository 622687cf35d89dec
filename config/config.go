package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/liftmpc/core/decisionlog"
	"github.com/kilianp07/liftmpc/core/factory"
	"github.com/kilianp07/liftmpc/core/metrics"
	"github.com/kilianp07/liftmpc/core/physics"
	"github.com/kilianp07/liftmpc/core/prediction"
	"github.com/kilianp07/liftmpc/core/scheduler"
	"github.com/kilianp07/liftmpc/infra/mqtt"
)

type Config struct {
	Building    physics.Params       `json:"building"`
	Scheduler   scheduler.Config     `json:"scheduler"`
	Prediction  factory.ModuleConfig `json:"prediction"`
	Fleet       []ElevatorConfig     `json:"fleet"`
	Service     ServiceConfig        `json:"service"`
	MQTT        mqtt.Config          `json:"mqtt"`
	Metrics     metrics.Config       `json:"metrics"`
	DecisionLog decisionlog.Config   `json:"decision_log"`
	Sentry      SentryConfig         `json:"sentry"`
}

// Default returns a configuration with every section at its default.
func Default() Config {
	c := Config{
		Building:  physics.Default(),
		Scheduler: scheduler.DefaultConfig(),
	}
	c.SetDefaults()
	return c
}

// SetDefaults fills sections left empty by the file.
func (c *Config) SetDefaults() {
	c.Building.SetDefaults()
	c.Service.SetDefaults()
	c.DecisionLog.SetDefaults()
	c.MQTT.Topics.SetDefaults()
	c.Sentry.SetDefaults()
	if c.Prediction.Type == "" {
		c.Prediction.Type = "uniform"
	}
	if c.Prediction.Type == "uniform" && c.Prediction.Conf == nil {
		c.Prediction.Conf = map[string]any{"floors": c.Building.Floors}
	}
	if c.Prediction.Type == "logistic" {
		if c.Prediction.Conf == nil {
			c.Prediction.Conf = map[string]any{}
		}
		if _, ok := c.Prediction.Conf["top_k"]; !ok {
			c.Prediction.Conf["top_k"] = c.Scheduler.TopK
		}
	}
	for i := range c.Fleet {
		c.Fleet[i].SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Building.Validate(); err != nil {
		return fmt.Errorf("building: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.Service.Validate(); err != nil {
		return fmt.Errorf("service: %w", err)
	}
	if err := c.DecisionLog.Validate(); err != nil {
		return fmt.Errorf("decision_log: %w", err)
	}
	if err := c.Sentry.Validate(); err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	if _, err := c.BuildPredictor(); err != nil {
		return fmt.Errorf("prediction: %w", err)
	}
	seen := make(map[string]bool, len(c.Fleet))
	for _, e := range c.Fleet {
		if err := e.Validate(c.Building.Floors); err != nil {
			return fmt.Errorf("fleet: %w", err)
		}
		if seen[e.ID] {
			return fmt.Errorf("fleet: duplicate elevator %s", e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// BuildPredictor builds the configured destination model and checks that it
// covers the building.
func (c Config) BuildPredictor() (prediction.Predictor, error) {
	p, err := prediction.NewPredictor(c.Prediction)
	if err != nil {
		return nil, err
	}
	if err := prediction.CheckFloors(p, c.Building.Floors); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads path (YAML or JSON), applies K_ environment overrides with __
// as the nesting separator, fills defaults and validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Config{
		Building:  physics.Default(),
		Scheduler: scheduler.DefaultConfig(),
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
