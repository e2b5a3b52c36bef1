// Package config loads the server configuration from an optional .env file,
// the environment and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/cyberinferno/minesweeper/board"
	"github.com/cyberinferno/minesweeper/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Usage is printed with any configuration error.
const Usage = "usage: minesweeper-server [--port PORT] [--size SIZE_X,SIZE_Y | --file FILE]"

// DefaultPort is the port used when none is configured.
const DefaultPort = 4444

// ErrConflictingBoardSource is returned when both a board size and a board file are given.
var ErrConflictingBoardSource = errors.New("--size and --file may not be specified together")

const (
	envPort            = "MINESWEEPER_PORT"
	envSize            = "MINESWEEPER_SIZE"
	envFile            = "MINESWEEPER_FILE"
	envBombProbability = "MINESWEEPER_BOMB_PROBABILITY"
	envLogLevel        = "LOG_LEVEL"
	envLogFormat       = "LOG_FORMAT"
	envLogFile         = "LOG_FILE"
)

// Config holds the server's configuration values.
type Config struct {
	Port            int     // TCP port, 0..65535
	Width           int     // Columns of a random board
	Height          int     // Rows of a random board
	File            string  // Board file to load instead of a random board
	BombProbability float64 // Chance of each random cell holding a bomb

	LogLevel  zerolog.Level
	LogFormat logger.Format
	LogFile   string
}

// Addr returns the listen address for Port on all interfaces.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:            DefaultPort,
		Width:           board.DefaultSize,
		Height:          board.DefaultSize,
		BombProbability: board.DefaultBombProbability,
		LogLevel:        zerolog.InfoLevel,
		LogFormat:       logger.FormatJSON,
	}
}

// Load builds the configuration. Variables from envFiles (".env" when none
// are named) never override variables already present in the environment,
// and flags in args override both.
//
// Parameters:
//   - args: Command line arguments without the program name
//   - envFiles: Optional dotenv files; a missing default ".env" is not an error
//
// Returns:
//   - The validated configuration, or an error; flag.ErrHelp for -h
func Load(args []string, envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, fmt.Errorf("loading env files: %w", err)
	}

	cfg, err := fromEnv()
	if err != nil {
		return Config{}, err
	}

	if err := cfg.applyFlags(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks ranges and that a named board file exists.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 0..65535", c.Port)
	}

	if err := board.ValidateSize(c.Width, c.Height); err != nil {
		return err
	}

	if c.BombProbability < 0 || c.BombProbability > 1 {
		return fmt.Errorf("bomb probability %v out of range [0,1]", c.BombProbability)
	}

	if c.File != "" {
		info, err := os.Stat(c.File)
		if err != nil {
			return fmt.Errorf("file not found: %q: %w", c.File, err)
		}
		if info.IsDir() {
			return fmt.Errorf("file not found: %q is a directory", c.File)
		}
	}

	return nil
}

func fromEnv() (Config, error) {
	cfg := Default()
	var err error

	if v, ok := os.LookupEnv(envPort); ok {
		if cfg.Port, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("environment variable %s must be an integer: %w", envPort, err)
		}
	}

	_, sizeSet := os.LookupEnv(envSize)
	if sizeSet {
		if cfg.Width, cfg.Height, err = parseSize(os.Getenv(envSize)); err != nil {
			return Config{}, fmt.Errorf("environment variable %s: %w", envSize, err)
		}
	}

	cfg.File = os.Getenv(envFile)
	if sizeSet && cfg.File != "" {
		return Config{}, ErrConflictingBoardSource
	}

	if v, ok := os.LookupEnv(envBombProbability); ok {
		if cfg.BombProbability, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, fmt.Errorf("environment variable %s must be a number: %w", envBombProbability, err)
		}
	}

	if cfg.LogLevel, err = logger.ParseLevel(os.Getenv(envLogLevel)); err != nil {
		return Config{}, fmt.Errorf("environment variable %s: %w", envLogLevel, err)
	}

	if cfg.LogFormat, err = parseFormat(os.Getenv(envLogFormat)); err != nil {
		return Config{}, fmt.Errorf("environment variable %s: %w", envLogFormat, err)
	}

	cfg.LogFile = os.Getenv(envLogFile)

	return cfg, nil
}

// applyFlags overrides c with command line flags. A board source given on
// the command line replaces one from the environment.
func (c *Config) applyFlags(args []string) error {
	flags := flag.NewFlagSet("minesweeper-server", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	port := flags.Int("port", c.Port, "port to listen on, 0..65535")
	size := flags.String("size", "", "random board size as SIZE_X,SIZE_Y")
	file := flags.String("file", "", "board file to load")
	logLevel := flags.String("log-level", c.LogLevel.String(), "debug, info, warn or error")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() > 0 {
		return fmt.Errorf("unknown option: %q", flags.Arg(0))
	}

	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["size"] && set["file"] {
		return ErrConflictingBoardSource
	}

	c.Port = *port

	switch {
	case set["size"]:
		w, h, err := parseSize(*size)
		if err != nil {
			return fmt.Errorf("unable to parse number for --size: %w", err)
		}
		c.Width, c.Height, c.File = w, h, ""
	case set["file"]:
		c.File = *file
	}

	if set["log-level"] {
		level, err := logger.ParseLevel(*logLevel)
		if err != nil {
			return err
		}
		c.LogLevel = level
	}

	return nil
}

func parseSize(s string) (int, int, error) {
	x, y, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("size %q must be SIZE_X,SIZE_Y", s)
	}

	w, err := strconv.Atoi(strings.TrimSpace(x))
	if err != nil {
		return 0, 0, err
	}

	h, err := strconv.Atoi(strings.TrimSpace(y))
	if err != nil {
		return 0, 0, err
	}

	return w, h, nil
}

func parseFormat(s string) (logger.Format, error) {
	switch logger.Format(strings.ToLower(s)) {
	case "", logger.FormatJSON:
		return logger.FormatJSON, nil
	case logger.FormatConsole:
		return logger.FormatConsole, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}
