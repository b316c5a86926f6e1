package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/agentctl/internal/wire"
)

const channelDepth = 10

// Client pumps requests and responses between channel endpoints and an
// agent socket. Callers send on the request channel and receive on the
// response channel; Run owns the connection in between.
type Client struct {
	requests  chan Request
	responses chan Response
	limits    wire.Limits
	log       zerolog.Logger
}

// New returns a client plus its two channel endpoints. Both channels
// carry a small buffer so a slow peer does not stall the caller
// immediately.
func New() (*Client, chan<- Request, <-chan Response) {
	c := &Client{
		requests:  make(chan Request, channelDepth),
		responses: make(chan Response, channelDepth),
		limits:    wire.DefaultLimits(),
		log:       zerolog.Nop(),
	}
	return c, c.requests, c.responses
}

// SetLogger replaces the client logger. Call before Run.
func (c *Client) SetLogger(log zerolog.Logger) { c.log = log }

// SetLimits replaces the wire limits. Call before Run.
func (c *Client) SetLimits(limits wire.Limits) { c.limits = limits }

type readResult struct {
	pkt wire.Packet
	err error
}

// Run drives the connection until the context ends, the request
// channel closes, a Shutdown request arrives, or the transport fails.
// A clean peer close reads as success. Run closes the response channel
// on the way out, so it must be called at most once per client.
func (c *Client) Run(ctx context.Context, conn net.Conn) error {
	defer close(c.responses)

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	reads := make(chan readResult)

	go func() {
		defer close(readerDone)
		for {
			pkt, err := wire.ReadPacket(conn, c.limits)
			select {
			case reads <- readResult{pkt: pkt, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	defer func() {
		close(stop)
		conn.SetReadDeadline(time.Now())
		<-readerDone
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req, ok := <-c.requests:
			if !ok {
				return nil
			}
			if _, isShutdown := req.(Shutdown); isShutdown {
				c.log.Debug().Msg("shutdown requested")
				return nil
			}
			pkt, err := req.Packet()
			if err != nil {
				return err
			}
			c.log.Debug().Str("kind", pkt.Kind.String()).Msg("sending request")
			if e := c.log.Trace(); e.Enabled() {
				e.Msg(wire.Hexdump("send "+pkt.Kind.String(), pkt.Payload))
			}
			if err := wire.WritePacket(conn, pkt, c.limits); err != nil {
				return fmt.Errorf("agent: write %s: %w", pkt.Kind, err)
			}

		case res := <-reads:
			if res.err != nil {
				if errors.Is(res.err, io.EOF) {
					c.log.Debug().Msg("agent closed the connection")
					return nil
				}
				return fmt.Errorf("agent: read: %w", res.err)
			}
			if e := c.log.Trace(); e.Enabled() {
				e.Msg(wire.Hexdump("recv "+res.pkt.Kind.String(), res.pkt.Payload))
			}
			if !res.pkt.Kind.IsResponse() {
				c.log.Warn().Str("kind", res.pkt.Kind.String()).Msg("dropping non-response packet")
				continue
			}
			c.log.Debug().Str("kind", res.pkt.Kind.String()).Msg("received response")
			select {
			case c.responses <- responseFromPacket(res.pkt):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
