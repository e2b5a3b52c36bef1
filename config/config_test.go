package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyberinferno/minesweeper/board"
	"github.com/cyberinferno/minesweeper/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnv = []string{envPort, envSize, envFile, envBombProbability, envLogLevel, envLogFormat, envLogFile}

// clearEnv unsets every variable Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnv {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeBoard(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "board.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 1\n0\n"), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 4444, cfg.Port)
	assert.Equal(t, board.DefaultSize, cfg.Width)
	assert.Equal(t, board.DefaultSize, cfg.Height)
	assert.Equal(t, ":4444", cfg.Addr())
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv(envPort, "5000")
	t.Setenv(envSize, "30,20")
	t.Setenv(envBombProbability, "0.1")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envLogFormat, "console")
	t.Setenv(envLogFile, "/tmp/minesweeper.log")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Port:            5000,
		Width:           30,
		Height:          20,
		BombProbability: 0.1,
		LogLevel:        zerolog.DebugLevel,
		LogFormat:       logger.FormatConsole,
		LogFile:         "/tmp/minesweeper.log",
	}, cfg)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(envPort, "5000")
	t.Setenv(envSize, "30,20")
	path := writeBoard(t)

	t.Run("port and size", func(t *testing.T) {
		cfg, err := Load([]string{"--port", "1234", "--size", "42,58"})
		require.NoError(t, err)
		assert.Equal(t, 1234, cfg.Port)
		assert.Equal(t, 42, cfg.Width)
		assert.Equal(t, 58, cfg.Height)
	})

	t.Run("file replaces environment size", func(t *testing.T) {
		cfg, err := Load([]string{"--file", path})
		require.NoError(t, err)
		assert.Equal(t, path, cfg.File)
		assert.Equal(t, 5000, cfg.Port)
	})

	t.Run("log level", func(t *testing.T) {
		cfg, err := Load([]string{"-log-level", "warn"})
		require.NoError(t, err)
		assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
	})
}

func TestLoad_ConflictingBoardSource(t *testing.T) {
	clearEnv(t)
	path := writeBoard(t)

	t.Run("flags", func(t *testing.T) {
		_, err := Load([]string{"--size", "3,3", "--file", path})
		assert.ErrorIs(t, err, ErrConflictingBoardSource)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(envSize, "3,3")
		t.Setenv(envFile, path)
		_, err := Load(nil)
		assert.ErrorIs(t, err, ErrConflictingBoardSource)
	})
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	cases := map[string][]string{
		"port too large":   {"--port", "65536"},
		"negative port":    {"--port", "-1"},
		"port not numeric": {"--port", "x"},
		"size without y":   {"--size", "3"},
		"size not numeric": {"--size", "a,b"},
		"zero size":        {"--size", "0,4"},
		"missing file":     {"--file", filepath.Join(dir, "nope.txt")},
		"directory":        {"--file", dir},
		"unknown flag":     {"--colour", "red"},
		"stray argument":   {"extra"},
		"bad log level":    {"-log-level", "loud"},
		"missing argument": {"--port"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(args)
			assert.Error(t, err)
		})
	}

	t.Run("zero size is ErrInvalidSize", func(t *testing.T) {
		clearEnv(t)
		_, err := Load([]string{"--size", "0,4"})
		assert.ErrorIs(t, err, board.ErrInvalidSize)
	})

	t.Run("oversized size is ErrInvalidSize", func(t *testing.T) {
		clearEnv(t)
		_, err := Load([]string{"--size", "3037000500,3037000500"})
		assert.ErrorIs(t, err, board.ErrInvalidSize)
	})

	t.Run("help", func(t *testing.T) {
		clearEnv(t)
		_, err := Load([]string{"-h"})
		assert.ErrorIs(t, err, flag.ErrHelp)
	})

	envCases := map[string][2]string{
		"port":              {envPort, "many"},
		"size":              {envSize, "12"},
		"probability range": {envBombProbability, "1.5"},
		"probability text":  {envBombProbability, "lots"},
		"log level":         {envLogLevel, "chatty"},
		"log format":        {envLogFormat, "xml"},
	}
	for name, kv := range envCases {
		t.Run("env "+name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load(nil)
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MINESWEEPER_PORT=6000\nMINESWEEPER_SIZE=5,6\n"), 0o644))

	t.Run("values are loaded", func(t *testing.T) {
		clearEnv(t)
		cfg, err := Load(nil, path)
		require.NoError(t, err)
		assert.Equal(t, 6000, cfg.Port)
		assert.Equal(t, 5, cfg.Width)
		assert.Equal(t, 6, cfg.Height)
	})

	t.Run("environment wins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(envPort, "7000")
		cfg, err := Load(nil, path)
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.Port)
	})

	t.Run("missing named file", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(nil, filepath.Join(t.TempDir(), "absent.env"))
		assert.Error(t, err)
	})
}
