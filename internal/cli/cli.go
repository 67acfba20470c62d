package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/specialistvlad/gridworker/internal/app"
	"github.com/specialistvlad/gridworker/internal/config"
)

// EnvPrefix prefixes every environment variable the worker reads.
const EnvPrefix = "GRIDWORKER_"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("failed to load .env: %v", err)}
	}

	flagSet := flag.NewFlagSet("gridworker", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
gridworker - A worker that hosts subworker processes and takes ownership of their results.

Usage:
  gridworker [options]

Configuration is layered: built-in defaults, then the -config file, then
GRIDWORKER_* environment variables (a .env file is read if present), then
flags given on the command line.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL worker configuration file.")
	listenFlag := flagSet.String("listen", config.DefaultListen, "Address the subworker endpoint listens on.")
	workDirFlag := flagSet.String("work-dir", "", "Root of the worker's private directory tree.")
	onDisconnectFlag := flagSet.String("on-disconnect", "abort", "What losing a registered subworker does. Options: 'abort' or 'unregister'.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument %q", flagSet.Arg(0))}
	}
	slog.Debug("Arguments parsed successfully.")

	configPath, overrides, err := fromEnv(os.LookupEnv)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	// Only flags given on the command line override lower layers.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
			configPath = *configFlag
		case "listen":
			overrides.Worker.Listen = *listenFlag
		case "work-dir":
			overrides.Worker.WorkDir = *workDirFlag
		case "on-disconnect":
			overrides.Worker.OnDisconnect = *onDisconnectFlag
		case "healthcheck-port":
			overrides.Healthcheck.Port = *healthPortFlag
		case "log-format":
			overrides.Log.Format = *logFormatFlag
		case "log-level":
			overrides.Log.Level = *logLevelFlag
		}
	})

	cfg, err := app.NewConfig(app.Config{
		ConfigPath: configPath,
		Overrides:  overrides,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config_path", cfg.ConfigPath)
	return cfg, false, nil
}

// fromEnv reads the GRIDWORKER_* variables.
func fromEnv(lookup func(string) (string, bool)) (string, config.Model, error) {
	get := func(name string) string {
		v, _ := lookup(EnvPrefix + name)
		return v
	}

	m := config.Model{
		Worker: config.Worker{
			Listen:       get("LISTEN"),
			WorkDir:      get("WORK_DIR"),
			OnDisconnect: get("ON_DISCONNECT"),
		},
		Log: config.Log{
			Level:  get("LOG_LEVEL"),
			Format: get("LOG_FORMAT"),
		},
	}
	if raw := get("HEALTHCHECK_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return "", config.Model{}, fmt.Errorf("invalid %sHEALTHCHECK_PORT %q: %w", EnvPrefix, raw, err)
		}
		m.Healthcheck.Port = port
	}
	return get("CONFIG"), m, nil
}
