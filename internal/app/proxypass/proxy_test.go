package proxypass_test

import (
	"io"
	"net"
	"net/netip"
	"testing"
	"time"

	gomock "github.com/golang/mock/gomock"
	"github.com/haveachin/proxypass/internal/app/proxypass"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/packet"
	"github.com/haveachin/proxypass/pkg/event"
)

func mockListener(ctrl *gomock.Controller, conns ...proxypass.Transport) *MockListener {
	l := NewMockListener(ctrl)
	l.EXPECT().Addr().AnyTimes().Return(&net.UDPAddr{Port: 19132})

	calls := make([]*gomock.Call, 0, len(conns)+1)
	for _, c := range conns {
		calls = append(calls, l.EXPECT().Accept().Times(1).Return(c, nil))
	}
	calls = append(calls, l.EXPECT().Accept().Times(1).Return(nil, net.ErrClosed))
	gomock.InOrder(calls...)
	return l
}

func receiveEvent(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return event.Event{}
}

func TestProxy_ProtocolMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mockTransport(ctrl)
	connector := NewMockConnector(ctrl)
	connector.EXPECT().Connect(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	f := newLoginFixture(t)
	gomock.InOrder(
		up.EXPECT().ReadPackets().Times(1).Return([]packet.Data{
			data(t, &packet.RequestNetworkSettings{
				ClientProtocol: proxypass.DefaultCodec.ProtocolVersion + 1,
			}),
			data(t, f.packet()),
		}, nil),
		up.EXPECT().WritePacket(&packet.PlayStatus{Status: packet.PlayStatusLoginFailedServer}).Times(1).Return(nil),
		up.EXPECT().ReadPackets().Times(1).Return(nil, io.EOF),
		up.EXPECT().Close().Times(1).Return(nil),
	)

	bus := event.NewInternalBus()
	events := make(chan event.Event, 10)
	bus.AttachHandlerFunc("", func(e event.Event) {
		events <- e
	}, proxypass.ProtocolMismatchEventTopic, proxypass.SessionCloseEventTopic)

	p := &proxypass.Proxy{
		Config:    f.config(),
		Listener:  mockListener(ctrl, up),
		Connector: connector,
		EventBus:  bus,
	}

	if err := p.ListenAndServe(); err != nil {
		t.Fatal(err)
	}

	mismatch, ok := receiveEvent(t, events).Data.(proxypass.ProtocolMismatchEvent)
	if !ok || mismatch.ClientProtocol != proxypass.DefaultCodec.ProtocolVersion+1 {
		t.Fatalf("unexpected event %v", mismatch)
	}

	closed, ok := receiveEvent(t, events).Data.(proxypass.SessionCloseEvent)
	if !ok || closed.State != proxypass.StateAborted {
		t.Fatalf("unexpected event %v", closed)
	}
}

func TestProxy_Sessions(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mockTransport(ctrl)
	release := make(chan struct{})
	closed := make(chan struct{})

	gomock.InOrder(
		up.EXPECT().ReadPackets().Times(1).Return([]packet.Data{
			data(t, &packet.RequestNetworkSettings{
				ClientProtocol: proxypass.DefaultCodec.ProtocolVersion,
			}),
			data(t, &packet.Disconnect{Message: "ignored"}),
		}, nil),
		up.EXPECT().ReadPackets().Times(1).DoAndReturn(func() ([]packet.Data, error) {
			<-release
			return nil, io.EOF
		}),
	)
	up.EXPECT().SetCodec(proxypass.DefaultCodec).Times(1)
	up.EXPECT().WritePacket(gomock.AssignableToTypeOf(&packet.NetworkSettings{})).Times(1).Return(nil)
	up.EXPECT().EnableCompression(packet.FlateCompression{}).Times(1)
	up.EXPECT().Close().Times(1).DoAndReturn(func() error {
		close(closed)
		return nil
	})

	f := newLoginFixture(t)
	p := &proxypass.Proxy{
		Config:    f.config(),
		Listener:  mockListener(ctrl, up),
		Connector: NewMockConnector(ctrl),
	}

	if err := p.ListenAndServe(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		sessions := p.Sessions()
		if len(sessions) == 1 && sessions[0].State == proxypass.StateAwaitingLogin {
			if sessions[0].RemoteAddr != clientAddr.String() || sessions[0].Authenticated {
				t.Fatalf("unexpected session %+v", sessions[0])
			}
			break
		}

		if time.Now().After(deadline) {
			t.Fatalf("expected one negotiated session; got %+v", sessions)
		}
		time.Sleep(time.Millisecond)
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("expected session to be closed")
	}
}

func TestProxy_CloseSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mockTransport(ctrl)
	read := make(chan struct{})
	closed := make(chan struct{})

	gomock.InOrder(
		up.EXPECT().ReadPackets().Times(1).Return(nil, nil),
		up.EXPECT().ReadPackets().Times(1).DoAndReturn(func() ([]packet.Data, error) {
			close(read)
			<-closed
			return nil, net.ErrClosed
		}),
	)
	up.EXPECT().Close().Times(1).DoAndReturn(func() error {
		close(closed)
		return nil
	})

	f := newLoginFixture(t)
	p := &proxypass.Proxy{
		Config:    f.config(),
		Listener:  mockListener(ctrl, up),
		Connector: NewMockConnector(ctrl),
	}

	if err := p.ListenAndServe(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-read:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session")
	}

	sessions := p.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("expected one session; got %d", len(sessions))
	}

	if !p.CloseSession(sessions[0].ID) {
		t.Fatal("expected session to be live")
	}

	deadline := time.Now().Add(time.Second)
	for len(p.Sessions()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected session to be removed")
		}
		time.Sleep(time.Millisecond)
	}

	if p.CloseSession(sessions[0].ID) {
		t.Fatal("expected closed session to be unknown")
	}
}

type denyAll struct{}

func (denyAll) IsAllowed(netip.Addr) bool { return false }

func TestProxy_IPFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mockTransport(ctrl)
	up.EXPECT().ReadPackets().Times(0)
	up.EXPECT().Close().Times(1).Return(nil)

	f := newLoginFixture(t)
	p := &proxypass.Proxy{
		Config:    f.config(),
		Listener:  mockListener(ctrl, up),
		Connector: NewMockConnector(ctrl),
		IPFilter:  denyAll{},
	}

	if err := p.ListenAndServe(); err != nil {
		t.Fatal(err)
	}

	if len(p.Sessions()) != 0 {
		t.Fatal("expected no session for a filtered connection")
	}
}
