package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/agentctl/internal/wire"
)

var (
	ErrAgentFailure  = errors.New("agent: request refused")
	ErrSessionClosed = errors.New("agent: session closed")
)

// Session is a synchronous facade over the client channel pair. One
// request is in flight at a time; the agent answers strictly in order,
// so each reply pairs with the request that is holding the lock.
type Session struct {
	mu        sync.Mutex
	requests  chan<- Request
	responses <-chan Response
	closed    bool
}

func NewSession(requests chan<- Request, responses <-chan Response) *Session {
	return &Session{requests: requests, responses: responses}
}

// Close stops the client loop. Safe to call once; further calls and
// in-flight requests report ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.requests)
}

func (s *Session) roundTrip(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Response{}, ErrSessionClosed
	}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case res, ok := <-s.responses:
		if !ok {
			s.closed = true
			return Response{}, ErrSessionClosed
		}
		return res, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (s *Session) expectSuccess(ctx context.Context, op string, req Request) error {
	res, err := s.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	if res.Kind == wire.KindFailure {
		return fmt.Errorf("%w: %s", ErrAgentFailure, op)
	}
	if res.Kind != wire.KindSuccess {
		return fmt.Errorf("%w: %s answered %s", ErrUnexpectedResponse, op, res.Kind)
	}
	return nil
}

// List fetches the identities the agent is willing to show.
func (s *Session) List(ctx context.Context) ([]Identity, error) {
	res, err := s.roundTrip(ctx, RequestIdentities{})
	if err != nil {
		return nil, err
	}
	if res.Kind == wire.KindFailure {
		return nil, fmt.Errorf("%w: list", ErrAgentFailure)
	}
	return ParseIdentities(res)
}

// Add loads a private key into the agent.
func (s *Session) Add(ctx context.Context, req AddIdentity) error {
	return s.expectSuccess(ctx, "add", req)
}

// AddConstrained loads a private key with use constraints.
func (s *Session) AddConstrained(ctx context.Context, req AddIdentityConstrained) error {
	return s.expectSuccess(ctx, "add-constrained", req)
}

// Remove drops the key identified by its public key blob.
func (s *Session) Remove(ctx context.Context, keyBlob []byte) error {
	return s.expectSuccess(ctx, "remove", RemoveIdentity{KeyBlob: keyBlob})
}

// RemoveAll clears the agent's key table.
func (s *Session) RemoveAll(ctx context.Context) error {
	return s.expectSuccess(ctx, "remove-all", RemoveAllIdentities{})
}

// Sign asks the agent to sign data with the key named by keyBlob and
// returns the raw signature blob.
func (s *Session) Sign(ctx context.Context, keyBlob, data []byte, flags uint32) ([]byte, error) {
	res, err := s.roundTrip(ctx, SignRequest{KeyBlob: keyBlob, Data: data, Flags: flags})
	if err != nil {
		return nil, err
	}
	if res.Kind == wire.KindFailure {
		return nil, fmt.Errorf("%w: sign", ErrAgentFailure)
	}
	return ParseSignature(res)
}

// Lock hides the agent's keys behind a passphrase.
func (s *Session) Lock(ctx context.Context, passphrase []byte) error {
	return s.expectSuccess(ctx, "lock", Lock{Passphrase: passphrase})
}

// Unlock reverses a Lock.
func (s *Session) Unlock(ctx context.Context, passphrase []byte) error {
	return s.expectSuccess(ctx, "unlock", Unlock{Passphrase: passphrase})
}
