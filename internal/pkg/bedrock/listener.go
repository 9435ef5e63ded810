package bedrock

import (
	"fmt"
	"net"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/haveachin/proxypass/internal/app/proxypass"
	"github.com/sandertv/go-raknet"
)

// PingStatus is the status shown to players in the server list.
type PingStatus struct {
	Edition         string
	ProtocolVersion int
	VersionName     string
	PlayerCount     int
	MaxPlayerCount  int
	GameMode        string
	GameModeNumeric int
	MOTD            string
}

func (p PingStatus) marshal(l *raknet.Listener) []byte {
	motd := strings.Split(p.MOTD, "\n")
	motd1 := motd[0]
	motd2 := ""
	if len(motd) > 1 {
		motd2 = motd[1]
	}

	port := 0
	if addr, ok := l.Addr().(*net.UDPAddr); ok {
		port = addr.Port
	}

	return []byte(fmt.Sprintf("%v;%v;%v;%v;%v;%v;%v;%v;%v;%v;%v;%v;",
		p.Edition, motd1, p.ProtocolVersion, p.VersionName, p.PlayerCount, p.MaxPlayerCount,
		l.ID(), motd2, p.GameMode, p.GameModeNumeric, port, port))
}

// Listener accepts Bedrock connections over RakNet. It implements proxypass.Listener.
type Listener struct {
	// MaxDecompressedSize overrides the batch size limit of accepted connections if set.
	MaxDecompressedSize datasize.ByteSize

	rl *raknet.Listener
}

// Listen binds a RakNet listener on addr that answers pings with status.
func Listen(addr string, status PingStatus) (*Listener, error) {
	rl, err := raknet.Listen(addr)
	if err != nil {
		return nil, err
	}
	rl.PongData(status.marshal(rl))

	return &Listener{
		rl: rl,
	}, nil
}

func (l *Listener) Accept() (proxypass.Transport, error) {
	c, err := l.rl.Accept()
	if err != nil {
		return nil, err
	}

	conn := NewConn(c)
	if l.MaxDecompressedSize > 0 {
		conn.SetMaxDecompressedSize(l.MaxDecompressedSize)
	}
	return conn, nil
}

func (l *Listener) Addr() net.Addr {
	return l.rl.Addr()
}

func (l *Listener) Close() error {
	return l.rl.Close()
}
