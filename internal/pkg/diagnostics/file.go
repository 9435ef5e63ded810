package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/gofrs/uuid"
)

// FileSink writes every blob as indented JSON to <Dir>/<sessionID>/<name>.json.
type FileSink struct {
	Dir string
	// MaxSize limits the size of a single blob. Zero means no limit.
	MaxSize datasize.ByteSize
}

func (s FileSink) Save(sessionID uuid.UUID, name string, data any) error {
	b, err := marshal(data, s.MaxSize)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	dir := filepath.Join(s.Dir, sessionID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, filepath.Base(name)+".json"), b, 0o644)
}
