package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/martinsuchenak/lifecycled/internal/collector"
	"github.com/martinsuchenak/lifecycled/internal/planner"
	"github.com/martinsuchenak/lifecycled/internal/pricing"
	"github.com/martinsuchenak/lifecycled/internal/refresh"
	"github.com/paularlott/cli"
)

const envPrefix = "LIFECYCLED_"

// Config holds the application configuration
type Config struct {
	DataDir    string
	ListenAddr string
	ConfigFile string // Path to .env file (if loaded)

	APIAuthToken string
	MCPAuthToken string

	ForecastYears      int
	WavesPerYear       int
	PlanningWindowDays int
	LicenseType        string
	PriceTTL           time.Duration
	KeepForecasts      int
	Today              string // YYYY-MM-DD override for reproducible runs

	ForecastSchedule string
	SNMP             SNMPConfig
}

// SNMPConfig holds the inventory collection settings
type SNMPConfig struct {
	Targets   []string
	Community string
	Version   string
	Port      int
	Timeout   time.Duration
	Retries   int
	Workers   int
	NetworkID string
	Schedule  string
}

func env(name string) []string {
	return []string{envPrefix + name}
}

// GetFlags returns every configuration flag. All of them are global so any
// subcommand can load the full configuration.
func GetFlags() []cli.Flag {
	flags := planningFlags()
	flags = append(flags, serverFlags()...)
	return append(flags, snmpFlags()...)
}

func planningFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:         "data-dir",
			Usage:        "Data directory path",
			DefaultValue: "./data",
			EnvVars:      env("DATA_DIR"),
			Global:       true,
		},
		&cli.IntFlag{
			Name:         "forecast-years",
			Usage:        "Forecast horizon in years (at most 10)",
			DefaultValue: planner.DefaultForecastYears,
			EnvVars:      env("FORECAST_YEARS"),
			Global:       true,
		},
		&cli.IntFlag{
			Name:         "waves-per-year",
			Usage:        "Refresh waves per year (1, 2, 3, 4, 6 or 12)",
			DefaultValue: planner.DefaultWavesPerYear,
			EnvVars:      env("WAVES_PER_YEAR"),
			Global:       true,
		},
		&cli.IntFlag{
			Name:         "planning-window",
			Usage:        "Only recommend replacements for devices within this many days of end of support (0 for no limit)",
			DefaultValue: 0,
			EnvVars:      env("PLANNING_WINDOW_DAYS"),
			Global:       true,
		},
		&cli.StringFlag{
			Name:         "license-type",
			Usage:        "License tier used for yearly license cost",
			DefaultValue: pricing.DefaultLicenseType,
			EnvVars:      env("LICENSE_TYPE"),
			Global:       true,
		},
		&cli.StringFlag{
			Name:         "price-ttl",
			Usage:        "How long a loaded price catalog stays fresh",
			DefaultValue: refresh.DefaultPriceTTL.String(),
			EnvVars:      env("PRICE_TTL"),
			Global:       true,
		},
		&cli.StringFlag{
			Name:    "today",
			Usage:   "Plan as of this date (YYYY-MM-DD) instead of the current date",
			EnvVars: env("TODAY"),
			Global:  true,
		},
	}
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:         "addr",
			Usage:        "Server listen address",
			DefaultValue: ":8080",
			EnvVars:      env("LISTEN_ADDR"),
			Global:       true,
		},
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "API bearer token for authentication",
			EnvVars: env("API_TOKEN"),
			Global:  true,
		},
		&cli.StringFlag{
			Name:    "mcp-token",
			Usage:   "MCP bearer token for authentication",
			EnvVars: env("MCP_TOKEN"),
			Global:  true,
		},
		&cli.StringFlag{
			Name:         "forecast-schedule",
			Usage:        "Cron schedule for stored forecast snapshots (empty to disable)",
			DefaultValue: "@daily",
			EnvVars:      env("FORECAST_SCHEDULE"),
			Global:       true,
		},
		&cli.IntFlag{
			Name:         "keep-forecasts",
			Usage:        "Number of stored forecast snapshots to keep (0 keeps all)",
			DefaultValue: 30,
			EnvVars:      env("KEEP_FORECASTS"),
			Global:       true,
		},
		&cli.StringFlag{
			Name:    "snmp-schedule",
			Usage:   "Cron schedule for SNMP inventory collection (empty to disable)",
			EnvVars: env("SNMP_SCHEDULE"),
			Global:  true,
		},
	}
}

func snmpFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "snmp-targets",
			Usage:   "Comma-separated hosts or CIDR ranges to poll",
			EnvVars: env("SNMP_TARGETS"),
			Global:  true,
		},
		&cli.StringFlag{
			Name:         "snmp-community",
			Usage:        "SNMP community string",
			DefaultValue: "public",
			EnvVars:      env("SNMP_COMMUNITY"),
			Global:       true,
		},
		&cli.StringFlag{
			Name:         "snmp-version",
			Usage:        "SNMP version (1 or 2c)",
			DefaultValue: "2c",
			EnvVars:      env("SNMP_VERSION"),
			Global:       true,
		},
		&cli.IntFlag{
			Name:         "snmp-port",
			Usage:        "SNMP port",
			DefaultValue: 161,
			EnvVars:      env("SNMP_PORT"),
			Global:       true,
		},
		&cli.StringFlag{
			Name:         "snmp-timeout",
			Usage:        "Per-request SNMP timeout",
			DefaultValue: "5s",
			EnvVars:      env("SNMP_TIMEOUT"),
			Global:       true,
		},
		&cli.IntFlag{
			Name:         "snmp-retries",
			Usage:        "SNMP retries per request",
			DefaultValue: 1,
			EnvVars:      env("SNMP_RETRIES"),
			Global:       true,
		},
		&cli.IntFlag{
			Name:         "snmp-workers",
			Usage:        "Number of targets polled concurrently",
			DefaultValue: 5,
			EnvVars:      env("SNMP_WORKERS"),
			Global:       true,
		},
		&cli.StringFlag{
			Name:    "snmp-network",
			Usage:   "Network id assigned to collected devices",
			EnvVars: env("SNMP_NETWORK_ID"),
			Global:  true,
		},
	}
}

// Load reads the configuration from the parsed command. Flags take
// precedence over environment variables, which take precedence over the
// defaults. A .env file in the working directory is loaded into the
// environment before the command line is parsed.
func Load(cmd *cli.Command) (*Config, error) {
	cfg := &Config{
		DataDir:            cmd.GetString("data-dir"),
		ListenAddr:         cmd.GetString("addr"),
		APIAuthToken:       cmd.GetString("api-token"),
		MCPAuthToken:       cmd.GetString("mcp-token"),
		ForecastYears:      cmd.GetInt("forecast-years"),
		WavesPerYear:       cmd.GetInt("waves-per-year"),
		PlanningWindowDays: cmd.GetInt("planning-window"),
		LicenseType:        cmd.GetString("license-type"),
		KeepForecasts:      cmd.GetInt("keep-forecasts"),
		Today:              cmd.GetString("today"),
		ForecastSchedule:   cmd.GetString("forecast-schedule"),
		SNMP: SNMPConfig{
			Targets:   splitList(cmd.GetString("snmp-targets")),
			Community: cmd.GetString("snmp-community"),
			Version:   cmd.GetString("snmp-version"),
			Port:      cmd.GetInt("snmp-port"),
			Retries:   cmd.GetInt("snmp-retries"),
			Workers:   cmd.GetInt("snmp-workers"),
			NetworkID: cmd.GetString("snmp-network"),
			Schedule:  cmd.GetString("snmp-schedule"),
		},
	}
	if _, err := os.Stat(".env"); err == nil {
		cfg.ConfigFile = ".env"
	}

	var err error
	if cfg.PriceTTL, err = parseDuration("price-ttl", cmd.GetString("price-ttl")); err != nil {
		return nil, err
	}
	if cfg.SNMP.Timeout, err = parseDuration("snmp-timeout", cmd.GetString("snmp-timeout")); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no planning run could use
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data-dir is required"))
	}
	if c.ForecastYears < 0 || c.ForecastYears > planner.MaxForecastYears {
		errs = append(errs, fmt.Errorf("forecast-years must be between 0 and %d", planner.MaxForecastYears))
	}
	if c.WavesPerYear < 0 || c.WavesPerYear > 12 || (c.WavesPerYear > 0 && 12%c.WavesPerYear != 0) {
		errs = append(errs, errors.New("waves-per-year must divide the year into whole months (1, 2, 3, 4, 6 or 12)"))
	}
	if c.PlanningWindowDays < 0 {
		errs = append(errs, errors.New("planning-window must not be negative"))
	}
	if c.KeepForecasts < 0 {
		errs = append(errs, errors.New("keep-forecasts must not be negative"))
	}
	if c.Today != "" {
		if _, err := time.Parse(time.DateOnly, c.Today); err != nil {
			errs = append(errs, fmt.Errorf("today must be YYYY-MM-DD: %w", err))
		}
	}
	if c.SNMP.Port < 0 || c.SNMP.Port > 65535 {
		errs = append(errs, errors.New("snmp-port out of range"))
	}
	return errors.Join(errs...)
}

// ServiceOptions maps the planning settings onto the service options
func (c *Config) ServiceOptions() refresh.Options {
	opts := refresh.Options{
		ForecastYears:      c.ForecastYears,
		WavesPerYear:       c.WavesPerYear,
		PlanningWindowDays: c.PlanningWindowDays,
		LicenseType:        c.LicenseType,
		PriceTTL:           c.PriceTTL,
		KeepForecasts:      c.KeepForecasts,
	}
	if c.Today != "" {
		// Validate has already checked the format
		opts.Today, _ = time.Parse(time.DateOnly, c.Today)
	}
	return opts
}

// CollectorConfig maps the SNMP settings onto the collector configuration
func (c *Config) CollectorConfig() collector.Config {
	return collector.Config{
		Targets:   c.SNMP.Targets,
		Community: c.SNMP.Community,
		Version:   c.SNMP.Version,
		Port:      uint16(c.SNMP.Port),
		Timeout:   c.SNMP.Timeout,
		Retries:   c.SNMP.Retries,
		Workers:   c.SNMP.Workers,
		NetworkID: c.SNMP.NetworkID,
	}
}

// IsAPIAuthEnabled checks if API authentication is configured
func (c *Config) IsAPIAuthEnabled() bool {
	return c.APIAuthToken != ""
}

// IsMCPEnabled checks if MCP authentication is configured
func (c *Config) IsMCPEnabled() bool {
	return c.MCPAuthToken != ""
}

// String returns a string representation of the config source
func (c *Config) String() string {
	if c.ConfigFile != "" {
		return fmt.Sprintf(".env file (%s)", c.ConfigFile)
	}
	return "environment variables"
}

func parseDuration(name, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a positive duration such as 24h: %q", name, v)
	}
	return d, nil
}

// splitList parses a comma-separated list, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
