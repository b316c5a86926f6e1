package agentd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/agentctl/internal/keyring"
	"github.com/danmuck/agentctl/internal/wire"
)

var ErrSocketPathRequired = errors.New("agentd: socket path required")

// ServiceConfig configures the daemon runtime.
type ServiceConfig struct {
	SocketPath        string
	AdminAddr         string
	AdminToken        string // guards /keys when set
	CORSOrigins       []string
	Limits            wire.Limits
	HeartbeatInterval time.Duration
}

// DefaultServiceConfig returns standalone runtime defaults. The admin
// surface stays off until an address is set.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		SocketPath:        filepath.Join(os.TempDir(), "agentd.sock"),
		AdminAddr:         "",
		Limits:            wire.DefaultLimits(),
		HeartbeatInterval: 30 * time.Second,
	}
}

// Service runs the agent daemon lifecycle as a standalone process.
type Service struct {
	cfg  ServiceConfig
	ring *keyring.Keyring
	log  zerolog.Logger

	started   time.Time
	connSeq   atomic.Uint64
	connCount atomic.Int64
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits = wire.DefaultLimits()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultServiceConfig().HeartbeatInterval
	}
	return &Service{
		cfg:  cfg,
		ring: keyring.New(),
		log:  log.Logger,
	}
}

// SetLogger replaces the service logger. Call before Run.
func (s *Service) SetLogger(log zerolog.Logger) { s.log = log }

// Keyring returns the daemon's key table.
func (s *Service) Keyring() *keyring.Keyring { return s.ring }

// Run blocks until process signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.serve(ctx)
}

func (s *Service) serve(ctx context.Context) error {
	if strings.TrimSpace(s.cfg.SocketPath) == "" {
		return ErrSocketPathRequired
	}
	ln, err := s.listen()
	if err != nil {
		return err
	}
	defer ln.Close()
	defer os.Remove(s.cfg.SocketPath)

	s.started = time.Now()
	s.log.Info().Str("socket", s.cfg.SocketPath).Msg("agent socket listening")

	acceptErr := make(chan error, 1)
	go func() { acceptErr <- s.acceptLoop(ctx, ln) }()

	adminErr := make(chan error, 1)
	if strings.TrimSpace(s.cfg.AdminAddr) != "" {
		go func() { adminErr <- s.serveAdmin(ctx) }()
	}

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("shutdown")
			return nil
		case err := <-acceptErr:
			return err
		case err := <-adminErr:
			if err != nil {
				return err
			}
		case <-ticker.C:
			s.log.Info().
				Int("keys", s.ring.Len()).
				Bool("locked", s.ring.Locked()).
				Int64("conns", s.connCount.Load()).
				Msg("heartbeat")
		}
	}
}

// listen binds the agent socket. A stale socket file from a previous
// run is removed first; the live socket is owner-only.
func (s *Service) listen() (net.Listener, error) {
	if err := os.Remove(s.cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("agentd: remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("agentd: listen: %w", err)
	}
	if err := os.Chmod(s.cfg.SocketPath, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("agentd: chmod socket: %w", err)
	}
	return ln, nil
}

func (s *Service) acceptLoop(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}
