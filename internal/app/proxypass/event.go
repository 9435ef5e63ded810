package proxypass

import (
	"time"

	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/login"
)

const (
	SessionOpenEventTopic      = "SessionOpen"
	ProtocolMismatchEventTopic = "ProtocolMismatch"
	PlayerLoginEventTopic      = "PlayerLogin"
	SessionBridgedEventTopic   = "SessionBridged"
	HandshakeAbortEventTopic   = "HandshakeAbort"
	SessionCloseEventTopic     = "SessionClose"
)

type SessionOpenEvent struct {
	Session *Session
}

type PlayerLoginEvent struct {
	Session  *Session
	AuthData login.AuthData
	Anchored bool
}

type SessionBridgedEvent struct {
	Session  *Session
	AuthData login.AuthData
}

type HandshakeAbortEvent struct {
	Session *Session
	State   State
	Err     error
}

type ProtocolMismatchEvent struct {
	Session        *Session
	ClientProtocol int32
	ServerProtocol int32
}

type SessionCloseEvent struct {
	Session  *Session
	State    State
	Duration time.Duration
}
