package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the YAML form of the ambient settings. Zero values leave the
// corresponding default untouched.
type File struct {
	Mode      string   `yaml:"mode"`
	WorkDelay Duration `yaml:"work_delay"`
	Strict    *bool    `yaml:"strict"`
	Connect   struct {
		Attempts   int      `yaml:"attempts"`
		Backoff    Duration `yaml:"backoff"`
		MaxBackoff Duration `yaml:"max_backoff"`
	} `yaml:"connect"`
	MetricsPort int `yaml:"metrics_port"`
	RESTPort    int `yaml:"rest_port"`
	Output      struct {
		File         string `yaml:"file"`
		MaxRecords   int    `yaml:"max_records"`
		LokiEndpoint string `yaml:"loki_endpoint"`
		NoStdout     *bool  `yaml:"no_stdout"`
	} `yaml:"output"`
}

type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dd
	return nil
}

func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}

func (f *File) apply(cfg *Config) {
	if f.Mode != "" {
		cfg.Mode = f.Mode
	}
	if f.WorkDelay.Duration != 0 {
		cfg.WorkDelay = f.WorkDelay.Duration
	}
	if f.Strict != nil {
		cfg.Strict = *f.Strict
	}
	if f.Connect.Attempts != 0 {
		cfg.ConnectAttempts = f.Connect.Attempts
	}
	if f.Connect.Backoff.Duration != 0 {
		cfg.ConnectBackoff = f.Connect.Backoff.Duration
	}
	if f.Connect.MaxBackoff.Duration != 0 {
		cfg.MaxConnectBackoff = f.Connect.MaxBackoff.Duration
	}
	if f.MetricsPort != 0 {
		cfg.MetricsPort = f.MetricsPort
	}
	if f.RESTPort != 0 {
		cfg.RESTPort = f.RESTPort
	}
	if f.Output.File != "" {
		cfg.FileOutput = f.Output.File
	}
	if f.Output.MaxRecords != 0 {
		cfg.MaxRecordsFileOutput = f.Output.MaxRecords
	}
	if f.Output.LokiEndpoint != "" {
		cfg.LokiEndpoint = f.Output.LokiEndpoint
	}
	if f.Output.NoStdout != nil {
		cfg.SilenceStdout = *f.Output.NoStdout
	}
}
