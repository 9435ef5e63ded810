package proxypass

import (
	"context"
	"fmt"
	"sync"

	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/login"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/packet"
	"github.com/haveachin/proxypass/pkg/event"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type State int32

const (
	StateAwaitingSettings State = iota
	StateAwaitingLogin
	StateConnecting
	StateBridged
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateAwaitingSettings:
		return "awaiting-settings"
	case StateAwaitingLogin:
		return "awaiting-login"
	case StateConnecting:
		return "connecting"
	case StateBridged:
		return "bridged"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type HandshakeOption func(h *Handshake)

// WithSink sets the sink that receives the chain data and the skin data of the player.
func WithSink(sink Sink) HandshakeOption {
	return func(h *Handshake) {
		h.sink = sink
	}
}

func WithEventBus(bus event.Bus) HandshakeOption {
	return func(h *Handshake) {
		h.bus = bus
	}
}

func WithLogger(logger *zap.Logger) HandshakeOption {
	return func(h *Handshake) {
		h.logger = logger
	}
}

// Handshake authenticates the player of a session and bridges the session to the target server.
// Handle must not be called concurrently.
type Handshake struct {
	cfg       Config
	session   *Session
	connector Connector
	sink      Sink
	bus       event.Bus
	logger    *zap.Logger

	state    atomic.Int32
	done     chan struct{}
	doneOnce sync.Once

	mu       sync.Mutex
	err      error
	identity *login.Identity
}

func NewHandshake(cfg Config, session *Session, connector Connector, opts ...HandshakeOption) *Handshake {
	h := &Handshake{
		cfg:       cfg,
		session:   session,
		connector: connector,
		logger:    zap.NewNop(),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logSession(session)...)
	return h
}

func (h *Handshake) State() State {
	return State(h.state.Load())
}

// Done is closed once the session is bridged or the handshake was aborted.
func (h *Handshake) Done() <-chan struct{} {
	return h.done
}

// Err returns the reason the handshake was aborted.
func (h *Handshake) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// AuthData returns the identity of the player once the login was validated.
func (h *Handshake) AuthData() (login.AuthData, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.identity == nil {
		return login.AuthData{}, false
	}
	return h.identity.AuthData, true
}

// Handle processes a handshake packet of the player. The ctx bounds the downstream connect
// that a valid login starts and should be cancelled when the session closes.
func (h *Handshake) Handle(ctx context.Context, pk packet.Packet) error {
	switch pk := pk.(type) {
	case *packet.RequestNetworkSettings:
		return h.handleRequestNetworkSettings(pk)
	case *packet.Login:
		return h.handleLogin(ctx, pk)
	}
	return fmt.Errorf("%w: %T", ErrUnexpectedPacket, pk)
}

func (h *Handshake) handleRequestNetworkSettings(pk *packet.RequestNetworkSettings) error {
	if h.State() != StateAwaitingSettings {
		return fmt.Errorf("%w: network settings request in state %s", ErrUnexpectedPacket, h.State())
	}

	up := h.session.Upstream()
	supported := h.cfg.Codec.ProtocolVersion
	if pk.ClientProtocol != supported {
		status := packet.PlayStatusLoginFailedClient
		if pk.ClientProtocol > supported {
			status = packet.PlayStatusLoginFailedServer
		}

		h.logger.Info("rejecting player with mismatching protocol",
			zap.Int32("clientProtocol", pk.ClientProtocol),
			zap.Stringer("status", status),
		)
		h.push(ProtocolMismatchEvent{
			Session:        h.session,
			ClientProtocol: pk.ClientProtocol,
			ServerProtocol: supported,
		}, ProtocolMismatchEventTopic)

		if err := up.WritePacket(&packet.PlayStatus{Status: status}); err != nil {
			h.logger.Debug("failed to send play status", zap.Error(err))
		}
		h.finish(StateAborted, fmt.Errorf("%w: client %d, server %d", ErrProtocolMismatch, pk.ClientProtocol, supported))
		return nil
	}

	up.SetCodec(h.cfg.Codec)
	if err := up.WritePacket(&packet.NetworkSettings{
		CompressionThreshold: 0,
		CompressionAlgorithm: packet.FlateCompression{},
	}); err != nil {
		return h.abort(err)
	}
	up.EnableCompression(packet.FlateCompression{})

	h.state.Store(int32(StateAwaitingLogin))
	return nil
}

func (h *Handshake) handleLogin(ctx context.Context, pk *packet.Login) error {
	if !h.state.CompareAndSwap(int32(StateAwaitingLogin), int32(StateConnecting)) {
		h.logger.Debug("ignoring login", zap.Stringer("state", h.State()))
		return fmt.Errorf("%w: login in state %s", ErrUnexpectedPacket, h.State())
	}

	req, err := login.ParseRequest(pk.ConnectionRequest)
	if err != nil {
		return h.abort(err)
	}

	identity, err := login.Authenticate(req, h.cfg.RootKey)
	if err != nil {
		return h.abort(err)
	}

	h.logger.Debug("validated login chain", zap.Bool("anchored", identity.Chain.Anchored))
	if !identity.Chain.Anchored && !h.cfg.AllowUnanchoredChains {
		return h.abort(login.ErrUnanchoredChain)
	}

	h.mu.Lock()
	h.identity = &identity
	h.mu.Unlock()

	h.logger = h.logger.With(logAuthData(identity.AuthData)...)
	h.logger.Info("player logged in")
	h.push(PlayerLoginEvent{
		Session:  h.session,
		AuthData: identity.AuthData,
		Anchored: identity.Chain.Anchored,
	}, PlayerLoginEventTopic)

	go h.connect(ctx, identity)
	return nil
}

func (h *Handshake) connect(ctx context.Context, identity login.Identity) {
	h.logger.Debug("connecting to downstream server", zap.String("targetAddr", h.cfg.TargetAddr))
	down, err := h.connector.Connect(ctx, h.cfg.TargetAddr, h.session.Upstream().RemoteAddr())
	if err != nil {
		_ = h.abort(fmt.Errorf("%w: %v", ErrDownstreamConnect, err))
		return
	}

	h.saveDiagnostics(identity)

	forger := login.Forger{
		Overrides: h.cfg.ClientDataOverrides,
		Validity:  h.cfg.ForgeValidity,
	}
	forged, err := forger.Forge(h.session.KeyPair(), identity.AuthData, identity.ClientData, h.cfg.Codec.ProtocolVersion)
	if err != nil {
		h.logger.Error("failed to forge login", zap.Error(err))
		_ = down.Close()
		_ = h.abort(err)
		return
	}

	if err := h.session.pair(down); err != nil {
		h.logger.Debug("session closed while connecting", zap.Error(err))
		h.finish(StateAborted, err)
		return
	}

	down.SetCodec(h.cfg.Codec)
	dh := &downstreamHandler{
		session: h.session,
		down:    down,
		login:   forged.Packet(h.cfg.Codec.ProtocolVersion),
		logger:  h.logger.Named("downstream"),
	}
	go dh.serve()
	down.SetPacketLogger(h.logger.Named("downstream"))

	if err := down.WritePacket(&packet.RequestNetworkSettings{
		ClientProtocol: h.cfg.Codec.ProtocolVersion,
	}); err != nil {
		_ = h.abort(fmt.Errorf("%w: %v", ErrDownstreamConnect, err))
		return
	}

	h.finish(StateBridged, nil)
	h.logger.Info("bridged session")
	h.push(SessionBridgedEvent{
		Session:  h.session,
		AuthData: identity.AuthData,
	}, SessionBridgedEventTopic)
}

func (h *Handshake) saveDiagnostics(identity login.Identity) {
	if h.sink == nil {
		return
	}

	if err := h.sink.Save(h.session.ID(), "chainData", identity.ChainData); err != nil {
		h.logger.Warn("failed to save chain data", zap.Error(err))
	}

	if err := h.sink.Save(h.session.ID(), "skinData", identity.ClientData); err != nil {
		h.logger.Warn("failed to save skin data", zap.Error(err))
	}
}

// abort aborts the handshake with err and disconnects the player with a generic message.
// It returns err for convenience.
func (h *Handshake) abort(err error) error {
	state := h.State()
	h.finish(StateAborted, err)
	h.logger.Debug("aborting handshake", zap.Stringer("state", state), zap.Error(err))
	h.push(HandshakeAbortEvent{
		Session: h.session,
		State:   state,
		Err:     err,
	}, HandshakeAbortEventTopic)

	if dErr := h.session.Upstream().Disconnect(disconnectCantConnect); dErr != nil {
		h.logger.Debug("failed to disconnect player", zap.Error(dErr))
	}
	return err
}

func (h *Handshake) finish(state State, err error) {
	h.mu.Lock()
	if err != nil && h.err == nil {
		h.err = err
	}
	h.mu.Unlock()

	h.state.Store(int32(state))
	h.doneOnce.Do(func() {
		close(h.done)
	})
}

func (h *Handshake) push(data any, topic string) {
	if h.bus == nil {
		return
	}
	h.bus.Push(data, topic)
}
