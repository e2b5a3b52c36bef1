package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyberinferno/minesweeper/board"
	"github.com/cyberinferno/minesweeper/cacher"
	"github.com/cyberinferno/minesweeper/config"
	"github.com/cyberinferno/minesweeper/game"
	"github.com/cyberinferno/minesweeper/logger"
)

const renderTTL = 10 * time.Minute

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Println(config.Usage)
			return
		}
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, config.Usage)
		os.Exit(1)
	}

	appLogger, err := logger.New(logger.Options{
		Service: "minesweeper-server",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("server terminated", logger.Field{Key: "error", Value: err})
		_ = appLogger.Close()
		os.Exit(1)
	}

	_ = appLogger.Close()
}

func run(cfg config.Config, appLogger logger.Logger) error {
	layout, err := loadLayout(cfg)
	if err != nil {
		return err
	}

	renders := cacher.NewMemoryCacher[string](renderTTL, 2*renderTTL)
	b, err := board.New(layout, board.WithRenderCache(renders, renderTTL))
	if err != nil {
		return fmt.Errorf("creating board: %w", err)
	}

	appLogger.Info("board ready",
		logger.Field{Key: "board_id", Value: b.ID()},
		logger.Field{Key: "columns", Value: b.Width()},
		logger.Field{Key: "rows", Value: b.Height()},
		logger.Field{Key: "bombs", Value: b.BombsRemaining()})

	srv, err := game.NewServer(game.Options{Addr: cfg.Addr(), Board: b, Logger: appLogger})
	if err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		sig := <-signals
		appLogger.Info("shutting down", logger.Field{Key: "signal", Value: sig.String()})
		srv.Stop()
	}()

	return srv.ListenAndServe()
}

func loadLayout(cfg config.Config) (board.Layout, error) {
	if cfg.File != "" {
		layout, err := board.LoadFile(cfg.File)
		if err != nil {
			return board.Layout{}, fmt.Errorf("loading board file: %w", err)
		}
		return layout, nil
	}

	layout, err := board.RandomLayout(cfg.Width, cfg.Height, cfg.BombProbability, nil)
	if err != nil {
		return board.Layout{}, fmt.Errorf("generating board: %w", err)
	}

	return layout, nil
}
