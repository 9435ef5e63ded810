package proxypass

import (
	"net"

	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/login"
	"go.uber.org/zap"
)

// This is just a collection of utility functions to have consistent log fields
// for every data field that is being logged.

func logListener(l Listener) []zap.Field {
	return []zap.Field{
		zap.String("listenerNetwork", l.Addr().Network()),
		zap.String("listenerAddr", l.Addr().String()),
	}
}

func logSession(s *Session) []zap.Field {
	return []zap.Field{
		zap.String("sessionId", s.ID().String()),
		zap.String("connRemoteAddr", addrString(s.Upstream().RemoteAddr())),
	}
}

func logAuthData(a login.AuthData) []zap.Field {
	return []zap.Field{
		zap.String("username", a.DisplayName),
		zap.String("identity", a.Identity.String()),
		zap.String("xuid", a.XUID),
	}
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
