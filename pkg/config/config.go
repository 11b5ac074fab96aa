// Package config provides the loader configuration from defaults,
// environment, config file and command line flags.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/robotalks/mojo.go/pkg/mojo"
	"github.com/robotalks/mojo.go/pkg/mojo/serial"
	"github.com/robotalks/mojo.go/pkg/mojo/sim"
)

// Config defines the configurations of the loader.
type Config struct {
	// Port is the serial port of the board, e.g. /dev/ttyACM0.
	Port string `mapstructure:"port"`
	// Flash writes uploads to flash instead of configuring the FPGA directly.
	Flash bool `mapstructure:"flash"`
	// Verify reads flash uploads back.
	Verify bool `mapstructure:"verify"`
	// StatusURL is the MQTT broker receiving status events, disabled if empty.
	// e.g. mqtt://host:port/topic-prefix/
	StatusURL string `mapstructure:"status_url"`
	// Simulate talks to an in-process simulated board instead of a serial port.
	Simulate bool `mapstructure:"simulate"`

	AckTimeout    time.Duration `mapstructure:"ack_timeout"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout"`
	ResetSettle   time.Duration `mapstructure:"reset_settle"`

	// File is the config file read by Load, if any.
	File string `mapstructure:"-"`
}

var defaultConfig = Config{
	Verify:        true,
	AckTimeout:    mojo.DefaultTiming().AckTimeout,
	LaunchTimeout: mojo.DefaultTiming().LaunchTimeout,
	ResetSettle:   mojo.DefaultTiming().ResetSettle,
}

func init() {
	if val := os.Getenv("MOJO_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("MOJO_STATUS_URL"); val != "" {
		defaultConfig.StatusURL = val
	}
	if val := os.Getenv("MOJO_CONFIG"); val != "" {
		defaultConfig.File = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.File, "config", defaultConfig.File, "Config file, default searches mojo.{toml,yaml,json}.")
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port of the Mojo board.")
	flag.BoolVar(&defaultConfig.Flash, "flash", defaultConfig.Flash, "Write uploads to flash.")
	flag.BoolVar(&defaultConfig.Verify, "verify", defaultConfig.Verify, "Verify flash after writing.")
	flag.StringVar(&defaultConfig.StatusURL, "status-url", defaultConfig.StatusURL, "MQTT broker URL for status events.")
	flag.BoolVar(&defaultConfig.Simulate, "sim", defaultConfig.Simulate, "Use a simulated board.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load reads the config file into c. Values set explicitly by flags take
// precedence, listed in overrides by flag name.
func (c *Config) Load(overrides map[string]bool) error {
	v := viper.New()
	v.SetDefault("port", c.Port)
	v.SetDefault("flash", c.Flash)
	v.SetDefault("verify", c.Verify)
	v.SetDefault("status_url", c.StatusURL)
	v.SetDefault("simulate", c.Simulate)
	v.SetDefault("ack_timeout", c.AckTimeout)
	v.SetDefault("launch_timeout", c.LaunchTimeout)
	v.SetDefault("reset_settle", c.ResetSettle)
	if c.File != "" {
		v.SetConfigFile(c.File)
	} else {
		v.SetConfigName("mojo")
		v.AddConfigPath("/etc/mojo")
		v.AddConfigPath("$HOME/.mojo")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && c.File == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	saved := *c
	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("parse config %s: %w", v.ConfigFileUsed(), err)
	}
	c.File = v.ConfigFileUsed()
	for name := range overrides {
		switch name {
		case "port":
			c.Port = saved.Port
		case "flash":
			c.Flash = saved.Flash
		case "verify":
			c.Verify = saved.Verify
		case "status-url":
			c.StatusURL = saved.StatusURL
		case "sim":
			c.Simulate = saved.Simulate
		}
	}
	return nil
}

// LoadFromFlags loads the config file, keeping values of flags set on
// the command line.
func (c *Config) LoadFromFlags() error {
	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { overrides[f.Name] = true })
	return c.Load(overrides)
}

// Timing returns the protocol timing.
func (c *Config) Timing() mojo.Timing {
	t := mojo.DefaultTiming()
	if c.AckTimeout > 0 {
		t.AckTimeout = c.AckTimeout
	}
	if c.LaunchTimeout > 0 {
		t.LaunchTimeout = c.LaunchTimeout
	}
	if c.ResetSettle > 0 {
		t.ResetSettle = c.ResetSettle
	}
	return t
}

// Mode returns the upload destination.
func (c *Config) Mode() mojo.Mode {
	if c.Flash {
		return mojo.ModeFlash
	}
	return mojo.ModeVolatile
}

// Opener returns the func opening ports, either serial or simulated.
func (c *Config) Opener() mojo.OpenFunc {
	if c.Simulate {
		return sim.NewBoard().Open
	}
	return serial.Opener
}

// PortLister returns the func enumerating ports.
func (c *Config) PortLister() mojo.PortLister {
	if c.Simulate {
		return func() ([]string, error) { return []string{"sim"}, nil }
	}
	return serial.PortNames
}

// NewLoader creates a Loader using current config.
func (c *Config) NewLoader() *mojo.Loader {
	l := mojo.NewLoader(c.Opener())
	l.Timing = c.Timing()
	return l
}

// MustLoad loads the config file and fails on error.
func (c *Config) MustLoad() *Config {
	if err := c.LoadFromFlags(); err != nil {
		log.Fatalln(err)
	}
	return c
}
