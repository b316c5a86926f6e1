package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/agentctl/internal/agentd"
	"github.com/danmuck/agentctl/internal/logging"
)

func main() {
	var (
		configPath string
		socketPath string
		adminAddr  string
	)
	flag.StringVar(&configPath, "config", "", "config file path")
	flag.StringVar(&socketPath, "socket", "", "agent socket path")
	flag.StringVar(&adminAddr, "admin", "", "admin listen address (off when empty)")
	flag.Parse()

	logger := logging.ConfigureRuntime("agentd")

	cfg := agentd.DefaultServiceConfig()
	if configPath != "" {
		var err error
		cfg, err = loadServiceConfig(configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load agentd config")
		}
		logger.Info().Str("path", configPath).Msg("loaded agentd config")
	}
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}
	if adminAddr != "" {
		cfg.AdminAddr = adminAddr
	}

	gin.SetMode(gin.ReleaseMode)
	svc := agentd.NewServiceWithConfig(cfg)
	svc.SetLogger(logger)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "agentd: %v\n", err)
		os.Exit(1)
	}
}
