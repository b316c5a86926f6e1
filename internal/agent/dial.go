package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrNoAgentSocket = errors.New("agent: no agent socket")

// EnvAuthSock names the environment variable holding the default
// agent socket path.
const EnvAuthSock = "SSH_AUTH_SOCK"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// DialConfig defines how the agent socket is reached.
type DialConfig struct {
	SocketPath         string // empty means $SSH_AUTH_SOCK
	ConnectTimeout     time.Duration
	MaxConnectAttempts int // <=0 retries until the context ends
	Backoff            BackoffConfig
}

func DefaultDialConfig() DialConfig {
	return DialConfig{
		ConnectTimeout:     5 * time.Second,
		MaxConnectAttempts: 3,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultDialConfig.
func (c DialConfig) WithDefaults() DialConfig {
	def := DefaultDialConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = def.Backoff.InitialDelay
	}
	if c.Backoff.Multiplier < 1.0 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = def.Backoff.MaxDelay
	}
	return c
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// Dialer connects to an agent socket with retry backoff.
type Dialer struct {
	cfg DialConfig
	rng *rand.Rand
	log zerolog.Logger
}

func NewDialer(cfg DialConfig) (*Dialer, error) {
	if strings.TrimSpace(cfg.SocketPath) == "" {
		cfg.SocketPath = os.Getenv(EnvAuthSock)
	}
	if strings.TrimSpace(cfg.SocketPath) == "" {
		return nil, fmt.Errorf("%w: set %s or pass a socket path", ErrNoAgentSocket, EnvAuthSock)
	}
	cfg = cfg.WithDefaults()
	return &Dialer{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: zerolog.Nop(),
	}, nil
}

// SetLogger replaces the dialer logger. Call before Dial.
func (d *Dialer) SetLogger(log zerolog.Logger) { d.log = log }

// SocketPath returns the resolved socket path.
func (d *Dialer) SocketPath() string { return d.cfg.SocketPath }

// Dial connects to the agent socket, retrying per the backoff config.
func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.cfg.ConnectTimeout}
	var attempt int
	for {
		attempt++
		conn, err := dialer.DialContext(ctx, "unix", d.cfg.SocketPath)
		if err == nil {
			return conn, nil
		}
		d.log.Warn().Int("attempt", attempt).Str("socket", d.cfg.SocketPath).Err(err).Msg("agent dial failed")
		if !d.shouldRetry(attempt) {
			return nil, fmt.Errorf("agent: dial %s: %w", d.cfg.SocketPath, err)
		}
		if err := d.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (d *Dialer) shouldRetry(attempt int) bool {
	if d.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < d.cfg.MaxConnectAttempts
}

func (d *Dialer) sleepBackoff(ctx context.Context, attempt int) error {
	delay := NextBackoffDelay(d.cfg.Backoff, attempt, d.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
