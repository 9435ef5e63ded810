package proxypass_test

import (
	"crypto/elliptic"
	"errors"
	"testing"

	gomock "github.com/golang/mock/gomock"
)

func TestNewSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mockTransport(ctrl)

	s1 := newSession(t, up)
	s2 := newSession(t, up)

	if s1.ID() == s2.ID() {
		t.Error("expected sessions to have distinct ids")
	}

	if s1.KeyPair().Curve != elliptic.P384() {
		t.Error("expected a P-384 key pair")
	}

	if s1.KeyPair().Equal(s2.KeyPair()) {
		t.Error("expected sessions to have distinct key pairs")
	}

	if s1.Downstream() != nil {
		t.Error("expected a new session to be pending")
	}
}

func TestSession_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mockTransport(ctrl)
	closeErr := errors.New("already closed")
	up.EXPECT().Close().Times(1).Return(closeErr)

	s := newSession(t, up)
	if err := s.Close(); !errors.Is(err, closeErr) {
		t.Fatalf("expected %v; got %v", closeErr, err)
	}

	if !s.Closed() {
		t.Error("expected session to be closed")
	}

	select {
	case <-s.Context().Done():
	default:
		t.Error("expected session context to be cancelled")
	}

	if err := s.Close(); err != nil {
		t.Errorf("expected second close to be a no-op; got %v", err)
	}
}
