package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ertugrulornek7-byte/zilseker/common/logger"
	"github.com/ertugrulornek7-byte/zilseker/internal/config"
	"github.com/ertugrulornek7-byte/zilseker/internal/control"
	"github.com/ertugrulornek7-byte/zilseker/internal/service"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `zil-client: operator CLI for the shared school bell

Usage:
  zil-client <command> [flags]

Commands:
  login <name> | login --station   adopt a profile on this device
  logout                           forget the profile (releases control)
  whoami                           show the local identity
  acquire | release                take or give back control
  announce --file <path>           publish a recorded announcement
  announce --device <dev> --duration 10s
                                   record from a capture device, then publish
  stop                             stop all playback on every station
  volume <0-100>                   set the global volume
  status                           show the shared state
  watch                            follow shared state changes
  schedule list|add|update|delete|export|import
  sounds list|add|update|delete
  users list|add|remove
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, control.ErrDenied) {
			fmt.Fprintf(os.Stderr, "busy: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Print(usage)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 命令行默认只输出警告以上的日志
	level := cfg.Log.Level
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	log, err := logger.NewLogger(level, "console", "zil-client")
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := service.NewClientService(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("Failed to close client service", zap.Error(err))
		}
	}()

	c := &cli{svc: svc, out: os.Stdout, log: log}
	return c.dispatch(ctx, args[0], args[1:])
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}
