// Package diagnostics stores the structured data a session captures during its handshake, such
// as the chain data and the skin data of a player, for later inspection.
package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/c2h5oh/datasize"
	"github.com/gofrs/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrTooLarge = errors.New("diagnostics data exceeds size limit")

type Sink interface {
	Save(sessionID uuid.UUID, name string, data any) error
}

// MultiSink saves to all of its sinks. A failing sink does not stop the others.
type MultiSink []Sink

func (ms MultiSink) Save(sessionID uuid.UUID, name string, data any) error {
	var result error
	for _, s := range ms {
		if err := s.Save(sessionID, name, data); err != nil {
			result = multierr.Append(result, err)
		}
	}
	return result
}

// Close closes all sinks that need to be closed.
func (ms MultiSink) Close() error {
	var result error
	for _, s := range ms {
		if c, ok := s.(io.Closer); ok {
			result = multierr.Append(result, c.Close())
		}
	}
	return result
}

// LogSink logs the data at debug level.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Save(sessionID uuid.UUID, name string, data any) error {
	s.Logger.Debug("captured session data",
		zap.String("sessionId", sessionID.String()),
		zap.String("name", name),
		zap.Any("data", data),
	)
	return nil
}

func marshal(data any, maxSize datasize.ByteSize) ([]byte, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, err
	}

	if maxSize > 0 && datasize.ByteSize(len(b)) > maxSize {
		return nil, fmt.Errorf("%w: %s > %s", ErrTooLarge, datasize.ByteSize(len(b)).HR(), maxSize.HR())
	}
	return b, nil
}
