package proxypass

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/multierr"
)

// Session is the connection of a player to the proxy and, once paired, the connection
// of the proxy to the target server on behalf of that player.
type Session struct {
	id        uuid.UUID
	upstream  Transport
	key       *ecdsa.PrivateKey
	createdAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	downstream Transport
	closed     bool
}

// NewSession creates a pending session with a fresh P-384 key pair.
func NewSession(upstream Transport) (*Session, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate proxy key: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        id,
		upstream:  upstream,
		key:       key,
		createdAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) Upstream() Transport {
	return s.upstream
}

// KeyPair returns the key the proxy uses on the downstream leg.
func (s *Session) KeyPair() *ecdsa.PrivateKey {
	return s.key
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Downstream returns nil while the session is pending.
func (s *Session) Downstream() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downstream
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// pair attaches the downstream transport. If the session closed in the meantime the downstream is
// closed instead and ErrSessionClosed is returned.
func (s *Session) pair(down Transport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return multierr.Append(ErrSessionClosed, down.Close())
	}

	if s.downstream != nil {
		return multierr.Append(errors.New("session is already paired"), down.Close())
	}

	s.downstream = down
	return nil
}

// Close closes both transports. It is safe to call Close multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	down := s.downstream
	s.mu.Unlock()

	s.cancel()

	err := s.upstream.Close()
	if down != nil {
		err = multierr.Append(err, down.Close())
	}
	return err
}
