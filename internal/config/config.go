// Package config loads the server's startup configuration from an optional
// YAML file and command-line flags. Flags win over the file.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration. Business rules such as the hold
// period live in the database settings table instead.
type Config struct {
	DBPath       string        `yaml:"db"`
	Addr         string        `yaml:"addr"`
	AdminUser    string        `yaml:"admin-user"`
	LogPath      string        `yaml:"log"`
	ScanInterval time.Duration `yaml:"scan-interval"`
	Telemetry    bool          `yaml:"telemetry"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DBPath:       "najdeno.sqlite3",
		Addr:         ":8080",
		AdminUser:    "admin",
		ScanInterval: time.Minute,
	}
}

const usage = `Usage: najdeno [flags]

Flags:
  -c, -config <path>      YAML config file (flags override its values)
  -d, -db <path>          SQLite database path (default: najdeno.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -i, -interval <dur>     hold expiry scan interval (default: 1m)
  -t, -telemetry          export traces and metrics to stdout
  -h, -help               show this help and exit
`

// Load parses args. It returns flag.ErrHelp after printing usage for -h.
func Load(args []string, out io.Writer) (Config, error) {
	fs := flag.NewFlagSet("najdeno", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }

	def := Default()
	var flags Config
	var path string
	fs.StringVar(&path, "config", "", "")
	fs.StringVar(&path, "c", "", "")
	fs.StringVar(&flags.DBPath, "db", def.DBPath, "")
	fs.StringVar(&flags.DBPath, "d", def.DBPath, "")
	fs.StringVar(&flags.Addr, "addr", def.Addr, "")
	fs.StringVar(&flags.Addr, "a", def.Addr, "")
	fs.StringVar(&flags.AdminUser, "user", def.AdminUser, "")
	fs.StringVar(&flags.AdminUser, "u", def.AdminUser, "")
	fs.StringVar(&flags.LogPath, "log", def.LogPath, "")
	fs.StringVar(&flags.LogPath, "l", def.LogPath, "")
	fs.DurationVar(&flags.ScanInterval, "interval", def.ScanInterval, "")
	fs.DurationVar(&flags.ScanInterval, "i", def.ScanInterval, "")
	fs.BoolVar(&flags.Telemetry, "telemetry", def.Telemetry, "")
	fs.BoolVar(&flags.Telemetry, "t", def.Telemetry, "")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg := def
	if path != "" {
		var err error
		if cfg, err = ReadFile(path); err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db", "d":
			cfg.DBPath = flags.DBPath
		case "addr", "a":
			cfg.Addr = flags.Addr
		case "user", "u":
			cfg.AdminUser = flags.AdminUser
		case "log", "l":
			cfg.LogPath = flags.LogPath
		case "interval", "i":
			cfg.ScanInterval = flags.ScanInterval
		case "telemetry", "t":
			cfg.Telemetry = flags.Telemetry
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadFile reads a YAML config file over the defaults. Keys it omits keep
// their default values.
func ReadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail late at startup.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.DBPath) == "":
		return errors.New("database path required")
	case strings.TrimSpace(c.Addr) == "":
		return errors.New("listen address required")
	case strings.TrimSpace(c.AdminUser) == "":
		return errors.New("admin username required")
	case c.ScanInterval <= 0:
		return fmt.Errorf("scan interval must be positive, got %s", c.ScanInterval)
	}
	return nil
}
