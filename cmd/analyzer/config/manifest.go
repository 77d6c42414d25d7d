package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML run description. It travels with a recorded
// experiment so the same capture can be re-analyzed without reconstructing
// the flag set. Every field is optional; set fields override the
// corresponding Config values.
//
// Example:
//
//	run: checkout-load-2026-01-04
//	sources:
//	  meter:
//	    path: captures/power.ndjson
//	  estimator:
//	    path: captures/estimates.json
//	  resource:
//	    path: captures/cpu.json
//	    serviceLabel: container
//	alignment:
//	  resolution: 5s
//	  precedence: estimate-first
//	  wattsPerCore: 3.5
//	integration:
//	  maxGap: 15s
type Manifest struct {
	Run     string `yaml:"run"`
	Sources struct {
		Meter struct {
			Path            string        `yaml:"path"`
			TimestampPath   string        `yaml:"timestampPath"`
			ValuePath       string        `yaml:"valuePath"`
			TimestampFormat string        `yaml:"timestampFormat"`
			SkewTolerance   time.Duration `yaml:"skewTolerance"`
		} `yaml:"meter"`
		Estimator struct {
			Path            string `yaml:"path"`
			TimestampPath   string `yaml:"timestampPath"`
			ValuePath       string `yaml:"valuePath"`
			TimestampFormat string `yaml:"timestampFormat"`
		} `yaml:"estimator"`
		Resource struct {
			Path         string `yaml:"path"`
			ServiceLabel string `yaml:"serviceLabel"`
		} `yaml:"resource"`
	} `yaml:"sources"`
	Alignment struct {
		Resolution   time.Duration `yaml:"resolution"`
		Window       time.Duration `yaml:"window"`
		Precedence   string        `yaml:"precedence"`
		WattsPerCore float64       `yaml:"wattsPerCore"`
	} `yaml:"alignment"`
	Integration struct {
		MaxGap  time.Duration `yaml:"maxGap"`
		Workers int           `yaml:"workers"`
	} `yaml:"integration"`
	Ingest struct {
		MaxRejectedFraction float64 `yaml:"maxRejectedFraction"`
	} `yaml:"ingest"`
}

// ApplyManifest loads cfg.ManifestFile (when set) and merges it into cfg.
// Manifest values win over flag and environment values.
func ApplyManifest(cfg *Config) error {
	if cfg.ManifestFile == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.ManifestFile)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest %s: %w", cfg.ManifestFile, err)
	}

	setString(&cfg.RunID, m.Run)
	setString(&cfg.MeterPath, m.Sources.Meter.Path)
	setString(&cfg.MeterTimestampPath, m.Sources.Meter.TimestampPath)
	setString(&cfg.MeterValuePath, m.Sources.Meter.ValuePath)
	setString(&cfg.MeterTimestampFormat, m.Sources.Meter.TimestampFormat)
	setDuration(&cfg.MeterSkew, m.Sources.Meter.SkewTolerance)

	setString(&cfg.EstimatorPath, m.Sources.Estimator.Path)
	setString(&cfg.EstimatorTimestampPath, m.Sources.Estimator.TimestampPath)
	setString(&cfg.EstimatorValuePath, m.Sources.Estimator.ValuePath)
	setString(&cfg.EstimatorTimestampFormat, m.Sources.Estimator.TimestampFormat)

	setString(&cfg.ResourcePath, m.Sources.Resource.Path)
	setString(&cfg.ResourceServiceLabel, m.Sources.Resource.ServiceLabel)

	setDuration(&cfg.Resolution, m.Alignment.Resolution)
	setDuration(&cfg.Window, m.Alignment.Window)
	setString(&cfg.Precedence, m.Alignment.Precedence)
	if m.Alignment.WattsPerCore > 0 {
		cfg.WattsPerCore = m.Alignment.WattsPerCore
	}

	setDuration(&cfg.MaxGap, m.Integration.MaxGap)
	if m.Integration.Workers > 0 {
		cfg.Workers = m.Integration.Workers
	}
	if m.Ingest.MaxRejectedFraction > 0 {
		cfg.MaxRejectedFraction = m.Ingest.MaxRejectedFraction
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
