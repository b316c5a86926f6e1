package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "agentctl: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "agentctl",
		Usage: "manage keys held by an ssh-agent",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "socket",
				Usage: "agent socket path (defaults to $SSH_AUTH_SOCK)",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "config file path",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-operation timeout",
				Value: 10 * time.Second,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn, error or disabled",
			},
		},
		Commands: cli.Commands{
			listCommand(),
			addCommand(),
			removeCommand(),
			removeAllCommand(),
			signCommand(),
			lockCommand(),
			unlockCommand(),
		},
	}
}
