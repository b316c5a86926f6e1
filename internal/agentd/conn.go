package agentd

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/danmuck/agentctl/internal/keyring"
	"github.com/danmuck/agentctl/internal/observability"
	"github.com/danmuck/agentctl/internal/wire"
)

// handleConn answers requests on one client connection until the peer
// goes away. Every request gets exactly one reply.
func (s *Service) handleConn(conn net.Conn) {
	defer conn.Close()
	s.connCount.Add(1)
	defer s.connCount.Add(-1)

	log := s.log.With().Uint64("conn", s.connSeq.Add(1)).Logger()
	log.Debug().Msg("client connected")

	for {
		pkt, err := wire.ReadPacket(conn, s.cfg.Limits)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug().Msg("client disconnected")
				return
			}
			log.Warn().Err(err).Msg("read failed")
			return
		}

		start := time.Now()
		reply, ok := s.dispatch(pkt)
		observability.RecordAgentOp(pkt.Kind.String(), ok, time.Since(start))
		log.Debug().Str("op", pkt.Kind.String()).Bool("ok", ok).Msg("request handled")

		if err := wire.WritePacket(conn, reply, s.cfg.Limits); err != nil {
			log.Warn().Err(err).Msg("write failed")
			return
		}
	}
}

// dispatch maps one request to its reply. The bool reports whether the
// request was honored.
func (s *Service) dispatch(pkt wire.Packet) (wire.Packet, bool) {
	switch pkt.Kind {
	case wire.KindRequestIdentities:
		return identitiesAnswer(s.ring.List()), true

	case wire.KindAddIdentity, wire.KindAddIDConstrained:
		opts, err := parseAddRequest(pkt.Body(), pkt.Kind == wire.KindAddIDConstrained)
		if err != nil {
			return s.refuse(pkt.Kind, err)
		}
		if err := s.ring.Add(opts); err != nil {
			return s.refuse(pkt.Kind, err)
		}
		return success(), true

	case wire.KindRemoveIdentity:
		blob, err := parseRemoveRequest(pkt.Body())
		if err != nil {
			return s.refuse(pkt.Kind, err)
		}
		if err := s.ring.Remove(blob); err != nil {
			return s.refuse(pkt.Kind, err)
		}
		return success(), true

	case wire.KindRemoveAllIdentities:
		if err := s.ring.RemoveAll(); err != nil {
			return s.refuse(pkt.Kind, err)
		}
		return success(), true

	case wire.KindSignRequest:
		req, err := parseSignRequest(pkt.Body())
		if err != nil {
			return s.refuse(pkt.Kind, err)
		}
		sig, err := s.ring.Sign(req.blob, req.data, req.flags)
		if err != nil {
			return s.refuse(pkt.Kind, err)
		}
		return signResponse(sig), true

	case wire.KindLock:
		pass, err := parsePassphrase(pkt.Body())
		if err != nil {
			return s.refuse(pkt.Kind, err)
		}
		if err := s.ring.Lock(pass); err != nil {
			return s.refuse(pkt.Kind, err)
		}
		return success(), true

	case wire.KindUnlock:
		pass, err := parsePassphrase(pkt.Body())
		if err != nil {
			return s.refuse(pkt.Kind, err)
		}
		if err := s.ring.Unlock(pass); err != nil {
			return s.refuse(pkt.Kind, err)
		}
		return success(), true

	case wire.KindExtension:
		s.log.Debug().Msg("extension request refused")
		return wire.NewPacket(wire.KindExtensionFailure, nil), false

	default:
		return s.refuse(pkt.Kind, errors.New("agentd: unsupported request"))
	}
}

func (s *Service) refuse(kind wire.Kind, err error) (wire.Packet, bool) {
	s.log.Debug().Str("op", kind.String()).Err(err).Msg("request refused")
	return wire.NewPacket(wire.KindFailure, nil), false
}

func success() wire.Packet {
	return wire.NewPacket(wire.KindSuccess, nil)
}

func signResponse(sig []byte) wire.Packet {
	var b wire.Builder
	b.String(sig)
	return wire.NewPacket(wire.KindSignResponse, b.Bytes())
}

func identitiesAnswer(keys []keyring.Key) wire.Packet {
	var b wire.Builder
	b.Uint32(uint32(len(keys)))
	for _, k := range keys {
		b.String(k.Blob).String([]byte(k.Comment))
	}
	return wire.NewPacket(wire.KindIdentitiesAnswer, b.Bytes())
}
