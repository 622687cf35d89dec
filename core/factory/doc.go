// Package factory provides a small generic registry used to instantiate
// pluggable modules such as metrics sinks and destination predictors from
// configuration. Modules are defined by a type string and a map of raw
// settings; factories decode the settings into typed structs.
//
// Example usage:
//
//	reg := factory.NewRegistry[prediction.Predictor]()
//	reg.Register("uniform", func(conf map[string]any) (prediction.Predictor, error) {
//	    var c struct{ Floors int `json:"floors"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return prediction.Uniform{FloorCount: c.Floors}, nil
//	})
//	p, err := reg.Create(factory.ModuleConfig{Type: "uniform", Conf: map[string]any{"floors": 12}})
package factory
