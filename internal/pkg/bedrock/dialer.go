package bedrock

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/haveachin/proxypass/internal/app/proxypass"
	"github.com/pires/go-proxyproto"
	"github.com/sandertv/go-raknet"
)

// Dialer connects to downstream servers over RakNet. It implements proxypass.Connector.
type Dialer struct {
	// ProxyBind is the local IP the dialer binds to. Any IP is used if empty.
	ProxyBind   string
	DialTimeout time.Duration
	// SendProxyProtocol prefixes the connection with a PROXY protocol v2 header carrying the
	// address of the player.
	SendProxyProtocol bool
	// MaxDecompressedSize overrides the batch size limit of the connection if set.
	MaxDecompressedSize datasize.ByteSize
}

func (d Dialer) Connect(ctx context.Context, addr string, clientAddr net.Addr) (proxypass.Transport, error) {
	var upstreamDialer raknet.UpstreamDialer = &net.Dialer{
		Timeout: d.DialTimeout,
		LocalAddr: &net.UDPAddr{
			IP: net.ParseIP(d.ProxyBind),
		},
	}

	if d.SendProxyProtocol {
		upstreamDialer = &proxyProtocolDialer{
			connAddr:       clientAddr,
			upstreamDialer: upstreamDialer,
		}
	}

	dialer := raknet.Dialer{
		UpstreamDialer: upstreamDialer,
	}

	c, err := dialer.DialContext(ctx, addr)
	if err != nil {
		return nil, err
	}

	conn := NewConn(c)
	if d.MaxDecompressedSize > 0 {
		conn.SetMaxDecompressedSize(d.MaxDecompressedSize)
	}
	return conn, nil
}

type proxyProtocolDialer struct {
	connAddr       net.Addr
	upstreamDialer raknet.UpstreamDialer
}

func (d proxyProtocolDialer) Dial(network, address string) (net.Conn, error) {
	rc, err := d.upstreamDialer.Dial(network, address)
	if err != nil {
		return nil, err
	}

	if err := writeProxyProtocolHeader(d.connAddr, rc); err != nil {
		rc.Close()
		return nil, err
	}

	return rc, nil
}

func writeProxyProtocolHeader(connAddr net.Addr, rc net.Conn) error {
	addr, ok := connAddr.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("proxy protocol: expected udp client address; got %T", connAddr)
	}

	tp := proxyproto.UDPv4
	if addr.IP.To4() == nil {
		tp = proxyproto.UDPv6
	}

	header := &proxyproto.Header{
		Version:           2,
		Command:           proxyproto.PROXY,
		TransportProtocol: tp,
		SourceAddr:        connAddr,
		DestinationAddr:   rc.RemoteAddr(),
	}

	if _, err := header.WriteTo(rc); err != nil {
		return err
	}

	return nil
}
