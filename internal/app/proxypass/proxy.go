package proxypass

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/login"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/packet"
	"github.com/haveachin/proxypass/pkg/event"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SessionInfo is a snapshot of a live session.
type SessionInfo struct {
	ID            uuid.UUID
	RemoteAddr    string
	State         State
	Authenticated bool
	AuthData      login.AuthData
	CreatedAt     time.Time
}

// IPFilter decides whether a player with the given address may open a session.
type IPFilter interface {
	IsAllowed(addr netip.Addr) bool
}

type proxySession struct {
	session   *Session
	handshake *Handshake
}

// Proxy accepts players on its Listener and bridges every one of them to Config.TargetAddr.
type Proxy struct {
	Config    Config
	Listener  Listener
	Connector Connector
	Sink      Sink
	Logger    *zap.Logger
	EventBus  event.Bus
	// IPFilter is optional.
	IPFilter IPFilter

	mu       sync.RWMutex
	sessions map[uuid.UUID]proxySession
}

// ListenAndServe accepts connections until the listener is closed.
func (p *Proxy) ListenAndServe() error {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	p.Logger.Info("starting to listen on", logListener(p.Listener)...)

	for {
		t, err := p.Listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if !p.isAllowed(t.RemoteAddr()) {
			p.Logger.Debug("rejecting filtered connection", zap.String("connRemoteAddr", addrString(t.RemoteAddr())))
			_ = t.Close()
			continue
		}

		go p.serve(t)
	}
}

func (p *Proxy) isAllowed(addr net.Addr) bool {
	if p.IPFilter == nil {
		return true
	}

	if addr == nil {
		return false
	}

	addrPort, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return false
	}
	return p.IPFilter.IsAllowed(addrPort.Addr().Unmap())
}

// Sessions returns all live sessions ordered by their creation.
func (p *Proxy) Sessions() []SessionInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(p.sessions))
	for _, ps := range p.sessions {
		authData, ok := ps.handshake.AuthData()
		infos = append(infos, SessionInfo{
			ID:            ps.session.ID(),
			RemoteAddr:    addrString(ps.session.Upstream().RemoteAddr()),
			State:         ps.handshake.State(),
			Authenticated: ok,
			AuthData:      authData,
			CreatedAt:     ps.session.CreatedAt(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// CloseSession closes the session with the given ID. It reports whether the session was live.
func (p *Proxy) CloseSession(id uuid.UUID) bool {
	p.mu.RLock()
	ps, ok := p.sessions[id]
	p.mu.RUnlock()
	if !ok {
		return false
	}

	if err := ps.session.Close(); err != nil && p.Logger != nil {
		p.Logger.Debug("failed to close session", zap.Error(err))
	}
	return true
}

// Close closes the listener and all live sessions.
func (p *Proxy) Close() error {
	err := p.Listener.Close()

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ps := range p.sessions {
		err = multierr.Append(err, ps.session.Close())
	}
	return err
}

func (p *Proxy) serve(up Transport) {
	s, err := NewSession(up)
	if err != nil {
		p.Logger.Error("failed to create session", zap.Error(err))
		_ = up.Close()
		return
	}

	logger := p.Logger.With(logSession(s)...)
	h := NewHandshake(p.Config, s, p.Connector,
		WithSink(p.Sink),
		WithEventBus(p.EventBus),
		WithLogger(p.Logger),
	)

	p.add(s, h)
	p.push(SessionOpenEvent{Session: s}, SessionOpenEventTopic)
	logger.Debug("accepted session")

	defer func() {
		p.remove(s)
		if err := s.Close(); err != nil {
			logger.Debug("failed to close session", zap.Error(err))
		}
		p.push(SessionCloseEvent{
			Session:  s,
			State:    h.State(),
			Duration: time.Since(s.CreatedAt()),
		}, SessionCloseEventTopic)
		logger.Debug("closed session", zap.Stringer("state", h.State()))
	}()

	for {
		pks, err := up.ReadPackets()
		if err != nil {
			if !s.Closed() {
				logger.Debug("upstream connection closed", zap.Error(err))
			}
			return
		}

		if err := p.handlePackets(s.Context(), s, h, pks); err != nil {
			logger.Info("closing session", zap.Error(err))
			return
		}
	}
}

// handlePackets passes the handshake packets of a batch to the handshake and forwards the rest once the
// session is bridged.
func (p *Proxy) handlePackets(ctx context.Context, s *Session, h *Handshake, pks []packet.Data) error {
	forward := make([]packet.Data, 0, len(pks))
	for _, data := range pks {
		switch h.State() {
		case StateBridged:
			forward = append(forward, data)
			continue
		case StateAborted:
			continue
		}

		pk, ok := handshakePacket(data.Header.PacketID)
		if !ok {
			p.Logger.Debug("dropping packet during handshake",
				zap.Uint32("packetId", data.Header.PacketID),
				zap.Stringer("state", h.State()),
			)
			continue
		}

		if err := data.Decode(pk); err != nil {
			return err
		}

		if err := h.Handle(ctx, pk); err != nil {
			if errors.Is(err, ErrUnexpectedPacket) {
				p.Logger.Debug("ignoring packet", zap.Error(err))
				continue
			}
			return err
		}
	}

	if len(forward) == 0 {
		return nil
	}

	down := s.Downstream()
	if down == nil {
		return ErrSessionClosed
	}
	return down.WriteData(forward...)
}

func handshakePacket(id uint32) (packet.Packet, bool) {
	switch id {
	case packet.IDRequestNetworkSettings:
		return &packet.RequestNetworkSettings{}, true
	case packet.IDLogin:
		return &packet.Login{}, true
	}
	return nil, false
}

func (p *Proxy) add(s *Session, h *Handshake) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions == nil {
		p.sessions = map[uuid.UUID]proxySession{}
	}
	p.sessions[s.ID()] = proxySession{
		session:   s,
		handshake: h,
	}
}

func (p *Proxy) remove(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, s.ID())
}

func (p *Proxy) push(data any, topic string) {
	if p.EventBus == nil {
		return
	}
	p.EventBus.Push(data, topic)
}
