package supervisor

import (
	"fmt"
	"time"

	"github.com/atframework/sigremap/internal/pkg/signals"
	yamlparser "github.com/atframework/sigremap/pkg/confparser/yaml"
)

const (
	DefaultPollInterval = time.Second
	DefaultDrainTimeout = 500 * time.Millisecond
	DefaultLogLevel     = "warn"
)

// Duration wraps time.Duration so it can be written as "1s" in config files.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the top of the sigremap configuration structure.
type Config struct {
	From string `yaml:"from,omitempty" json:"from,omitempty"`
	To   string `yaml:"to,omitempty" json:"to,omitempty"`

	PollInterval Duration `yaml:"pollInterval,omitempty" json:"pollInterval,omitempty"`
	DrainTimeout Duration `yaml:"drainTimeout,omitempty" json:"drainTimeout,omitempty"`

	Logging *Logging `yaml:"log,omitempty" json:"log,omitempty"`

	Metric *Metric `yaml:"metric,omitempty" json:"metric,omitempty"`
}

// LoadConfig reads the configuration file at path. Defaults are not applied.
func LoadConfig(path string) (*Config, error) {
	cfg := new(Config)
	if err := yamlparser.LoadConfig(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.PollInterval.Duration <= 0 {
		c.PollInterval.Duration = DefaultPollInterval
	}
	if c.DrainTimeout.Duration <= 0 {
		c.DrainTimeout.Duration = DefaultDrainTimeout
	}
	if c.Logging == nil {
		c.Logging = new(Logging)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

// Mapping validates From and To and builds the signal mapping.
func (c *Config) Mapping() (signals.Mapping, error) {
	if c.From == "" {
		return signals.Mapping{}, fmt.Errorf("missing signal to catch, set --from")
	}
	if c.To == "" {
		return signals.Mapping{}, fmt.Errorf("missing signal to deliver, set --to")
	}
	return signals.ParseMapping(c.From, c.To)
}
