// Package config holds the immutable configuration snapshot a scan session
// is started with. Settings come from defaults, then an optional INI file,
// then command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"
)

// Config is the run configuration for the sniffer.
type Config struct {
	// Duration is the scan length in seconds. 0 scans until interrupted.
	Duration float64
	// Continuous forces an unbounded scan regardless of Duration.
	Continuous bool

	FilterName    string
	FilterAddress string

	// CSVPath and CBORPath are optional detection log targets; empty
	// disables the corresponding sink.
	CSVPath  string
	CBORPath string

	// LogLevel is the diagnostic log level (zerolog level name).
	LogLevel string
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Duration: 10,
		LogLevel: "info",
	}
}

// LoadFromFile overlays settings from an INI file. Keys are matched
// case-insensitively; missing keys keep their current values.
func (c *Config) LoadFromFile(path string) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		return err
	}

	section := cfg.Section("")
	c.Duration = section.Key("duration").MustFloat64(c.Duration)
	c.Continuous = section.Key("continuous").MustBool(c.Continuous)
	c.FilterName = section.Key("filtername").MustString(c.FilterName)
	c.FilterAddress = section.Key("filteraddress").MustString(c.FilterAddress)
	c.CSVPath = section.Key("csv").MustString(c.CSVPath)
	c.CBORPath = section.Key("cbor").MustString(c.CBORPath)
	c.LogLevel = section.Key("loglevel").MustString(c.LogLevel)

	return nil
}

// Validate rejects configurations that must abort the run before any
// scanning side effect.
func (c *Config) Validate() error {
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %v", c.Duration)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}

// ScanDuration resolves the duration rules: continuous mode and a zero
// duration both mean an unbounded scan, reported as 0.
func (c *Config) ScanDuration() time.Duration {
	if c.Continuous || c.Duration == 0 {
		return 0
	}
	return time.Duration(c.Duration * float64(time.Second))
}
