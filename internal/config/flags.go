package config

import "flag"

// CLIFlags holds command-line overrides. Nil pointers mean the flag was
// not set; only set flags override ENV and YAML.
type CLIFlags struct {
	Port       *string
	LogLevel   *string
	DSN        *string
	NatsURL    *string
	ConfigPath *string
}

// ParseFlags parses command-line arguments into CLIFlags. Supports long
// and short forms for the common flags.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("devplane", flag.ContinueOnError)

	port := fs.String("port", "", "HTTP listen port")
	fs.StringVar(port, "p", "", "HTTP listen port (shorthand)")
	logLevel := fs.String("log-level", "", "log level (debug|info|warn|error)")
	dsn := fs.String("dsn", "", "PostgreSQL DSN")
	natsURL := fs.String("nats-url", "", "NATS server URL")
	configPath := fs.String("config", "", "path to YAML config file")
	fs.StringVar(configPath, "c", "", "path to YAML config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, err
	}

	var flags CLIFlags
	if *port != "" {
		flags.Port = port
	}
	if *logLevel != "" {
		flags.LogLevel = logLevel
	}
	if *dsn != "" {
		flags.DSN = dsn
	}
	if *natsURL != "" {
		flags.NatsURL = natsURL
	}
	if *configPath != "" {
		flags.ConfigPath = configPath
	}
	return flags, nil
}

// LoadWithCLI loads configuration with the full hierarchy:
// defaults < YAML < ENV < CLI. Returns the resolved config path.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, "", err
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, "", err
	}
	return &cfg, path, nil
}

// applyCLI overlays set CLI flags onto cfg.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
}
