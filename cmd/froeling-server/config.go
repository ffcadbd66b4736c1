package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type appConfig struct {
	serialDev       string
	baud            int
	listenAddr      string
	serialReadTO    time.Duration
	validateCRC     bool
	logFormat       string
	logLevel        string
	metricsAddr     string
	maxClients      int
	clientReadTO    time.Duration
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
	queryState      bool
	queryValues     bool
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	configFile := flag.String("config", "", "Optional TOML configuration file")
	serialDev := flag.String("serial", "", "Serial device path of the boiler TTY (required)")
	baud := flag.Int("baud", 57600, "Serial baud rate")
	listen := flag.String("listen", "", "TCP listen address for the proxy (empty disables the proxy)")
	serialReadTO := flag.Duration("serial-read-timeout", time.Second, "Serial reply timeout")
	validateCRC := flag.Bool("validate-crc", false, "Reject reply frames with a wrong checksum")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	maxClients := flag.Int("max-clients", 0, "Maximum simultaneous TCP clients (0 = unlimited)")
	clientReadTO := flag.Duration("client-read-timeout", 60*time.Second, "Per-connection read deadline")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement of the proxy")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default froeling-server-<hostname>)")
	queryState := flag.Bool("state", false, "Query and print the current boiler state, then continue")
	queryValues := flag.Bool("values", false, "Query and print the default temperature values, then continue")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over env and file.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.serialDev = *serialDev
	cfg.baud = *baud
	cfg.listenAddr = *listen
	cfg.serialReadTO = *serialReadTO
	cfg.validateCRC = *validateCRC
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.maxClients = *maxClients
	cfg.clientReadTO = *clientReadTO
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName
	cfg.queryState = *queryState
	cfg.queryValues = *queryValues

	if *configFile != "" {
		if err := applyConfigFile(cfg, *configFile, setFlags); err != nil {
			fmt.Printf("config file error: %v\n", err)
			return nil, *showVersion
		}
	}
	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if *showVersion {
		return cfg, true
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, false
	}
	return cfg, false
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open devices or listeners – only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.serialDev == "" {
		return errors.New("serial device path is required (-serial)")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.clientReadTO <= 0 {
		return fmt.Errorf("client-read-timeout must be > 0")
	}
	if c.maxClients < 0 {
		return fmt.Errorf("max-clients must be >= 0")
	}
	return nil
}

// fileConfig mirrors appConfig for TOML decoding. Pointer fields
// distinguish "absent" from zero values; durations are Go duration
// strings.
type fileConfig struct {
	Serial             *string `toml:"serial"`
	Baud               *int    `toml:"baud"`
	Listen             *string `toml:"listen"`
	SerialReadTimeout  *string `toml:"serial_read_timeout"`
	ValidateCRC        *bool   `toml:"validate_crc"`
	LogFormat          *string `toml:"log_format"`
	LogLevel           *string `toml:"log_level"`
	MetricsAddr        *string `toml:"metrics_addr"`
	MaxClients         *int    `toml:"max_clients"`
	ClientReadTimeout  *string `toml:"client_read_timeout"`
	LogMetricsInterval *string `toml:"log_metrics_interval"`
	MDNSEnable         *bool   `toml:"mdns_enable"`
	MDNSName           *string `toml:"mdns_name"`
}

// applyConfigFile fills cfg from a TOML file for every key not already set
// by an explicit flag.
func applyConfigFile(c *appConfig, path string, set map[string]struct{}) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	dur := func(flagName string, s *string, dst *time.Duration) error {
		if s == nil {
			return nil
		}
		if _, ok := set[flagName]; ok {
			return nil
		}
		d, err := time.ParseDuration(*s)
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", flagName, path, err)
		}
		*dst = d
		return nil
	}
	if _, ok := set["serial"]; !ok && fc.Serial != nil {
		c.serialDev = *fc.Serial
	}
	if _, ok := set["baud"]; !ok && fc.Baud != nil {
		c.baud = *fc.Baud
	}
	if _, ok := set["listen"]; !ok && fc.Listen != nil {
		c.listenAddr = *fc.Listen
	}
	if err := dur("serial-read-timeout", fc.SerialReadTimeout, &c.serialReadTO); err != nil {
		return err
	}
	if _, ok := set["validate-crc"]; !ok && fc.ValidateCRC != nil {
		c.validateCRC = *fc.ValidateCRC
	}
	if _, ok := set["log-format"]; !ok && fc.LogFormat != nil {
		c.logFormat = *fc.LogFormat
	}
	if _, ok := set["log-level"]; !ok && fc.LogLevel != nil {
		c.logLevel = *fc.LogLevel
	}
	if _, ok := set["metrics-addr"]; !ok && fc.MetricsAddr != nil {
		c.metricsAddr = *fc.MetricsAddr
	}
	if _, ok := set["max-clients"]; !ok && fc.MaxClients != nil {
		c.maxClients = *fc.MaxClients
	}
	if err := dur("client-read-timeout", fc.ClientReadTimeout, &c.clientReadTO); err != nil {
		return err
	}
	if err := dur("log-metrics-interval", fc.LogMetricsInterval, &c.logMetricsEvery); err != nil {
		return err
	}
	if _, ok := set["mdns-enable"]; !ok && fc.MDNSEnable != nil {
		c.mdnsEnable = *fc.MDNSEnable
	}
	if _, ok := set["mdns-name"]; !ok && fc.MDNSName != nil {
		c.mdnsName = *fc.MDNSName
	}
	return nil
}

// applyEnvOverrides maps FROELING_SERVER_* environment variables to config
// fields unless a corresponding flag was explicitly set. Empty values are
// ignored. Duration accepts Go time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["serial"]; !ok {
		if v, ok := get("FROELING_SERVER_SERIAL"); ok && v != "" {
			c.serialDev = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("FROELING_SERVER_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FROELING_SERVER_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["listen"]; !ok {
		if v, ok := get("FROELING_SERVER_LISTEN"); ok {
			c.listenAddr = v
		}
	}
	if _, ok := set["serial-read-timeout"]; !ok {
		if v, ok := get("FROELING_SERVER_SERIAL_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.serialReadTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FROELING_SERVER_SERIAL_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["validate-crc"]; !ok {
		if v, ok := get("FROELING_SERVER_VALIDATE_CRC"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.validateCRC = true
			case "0", "false", "no", "off":
				c.validateCRC = false
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("FROELING_SERVER_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("FROELING_SERVER_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("FROELING_SERVER_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["max-clients"]; !ok {
		if v, ok := get("FROELING_SERVER_MAX_CLIENTS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.maxClients = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FROELING_SERVER_MAX_CLIENTS: %w", err)
			}
		}
	}
	if _, ok := set["client-read-timeout"]; !ok {
		if v, ok := get("FROELING_SERVER_CLIENT_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.clientReadTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FROELING_SERVER_CLIENT_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("FROELING_SERVER_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FROELING_SERVER_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("FROELING_SERVER_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("FROELING_SERVER_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}
