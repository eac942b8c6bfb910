package config

import (
	"flag"
	"io"
)

// CLIFlags holds command-line overrides. Nil fields were not set on the
// command line and leave the loaded value untouched.
type CLIFlags struct {
	Port        *string
	LogLevel    *string
	ConfigPath  *string
	CacheDir    *string
	StoragePath *string
}

// ParseFlags parses command-line arguments into CLIFlags.
// Long and short forms are accepted: --port/-p, --config/-c.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("inkwell", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	port := fs.String("port", "", "HTTP server port")
	fs.StringVar(port, "p", "", "HTTP server port (shorthand)")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	configPath := fs.String("config", "", "path to YAML config file")
	fs.StringVar(configPath, "c", "", "path to YAML config file (shorthand)")
	cacheDir := fs.String("cache-dir", "", "cache directory")
	storagePath := fs.String("storage-path", "", "artifact storage directory")

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
	if *configPath != "" {
		flags.ConfigPath = configPath
	}
	if *cacheDir != "" {
		flags.CacheDir = cacheDir
	}
	if *storagePath != "" {
		flags.StoragePath = storagePath
	}
	return flags, nil
}

// LoadWithCLI returns a Config using the full hierarchy:
// defaults < YAML < ENV < CLI. It also returns the resolved config path.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, path, err
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

// applyCLI overlays non-nil CLI flags onto cfg.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.CacheDir != nil {
		cfg.Cache.Dir = *flags.CacheDir
	}
	if flags.StoragePath != nil {
		cfg.Storage.Path = *flags.StoragePath
	}
}
