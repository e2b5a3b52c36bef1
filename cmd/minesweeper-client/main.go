package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/cyberinferno/minesweeper/client"
	"github.com/cyberinferno/minesweeper/logger"
	"github.com/rs/zerolog"
)

func main() {
	addr := flag.String("addr", "localhost:4444", "minesweeper server address")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	appLogger := logger.NewZerologLogger(
		zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}), "minesweeper-client", level)

	c := client.NewLineClient(client.DefaultConfig(*addr))
	defer c.Close()

	done := make(chan struct{})
	var doneOnce sync.Once
	c.OnLine(func(e client.LineEvent) {
		fmt.Println(e.Line)
	})
	c.OnError(func(e client.ErrorEvent) {
		appLogger.Debug("connection error", logger.Field{Key: "error", Value: e.Error})
	})
	c.OnConnectionState(func(e client.ConnectionStateEvent) {
		appLogger.Debug("connection state", logger.Field{Key: "state", Value: e.State.String()})
		if e.State == client.Disconnected {
			doneOnce.Do(func() { close(done) })
		}
	})

	if err := c.Connect(); err != nil {
		appLogger.Error("failed to connect", logger.Field{Key: "addr", Value: *addr}, logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := c.SendLine(scanner.Text()); err != nil {
				appLogger.Warn("failed to send", logger.Field{Key: "error", Value: err})
				return
			}
		}
		_ = c.Disconnect()
	}()

	<-done
}
