package diagnostics

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	names []string
	err   error
}

func (s *recordingSink) Save(_ uuid.UUID, name string, _ any) error {
	s.names = append(s.names, name)
	return s.err
}

func TestFileSink_Save(t *testing.T) {
	sessionID := uuid.Must(uuid.NewV4())
	data := map[string]any{"displayName": "Steve"}

	tt := []struct {
		name    string
		maxSize datasize.ByteSize
		err     error
	}{
		{
			name: "Unlimited",
		},
		{
			name:    "WithinLimit",
			maxSize: datasize.KB,
		},
		{
			name:    "TooLarge",
			maxSize: 4 * datasize.B,
			err:     ErrTooLarge,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			s := FileSink{Dir: dir, MaxSize: tc.maxSize}

			err := s.Save(sessionID, "chainData", data)
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v; got %v", tc.err, err)
			}

			path := filepath.Join(dir, sessionID.String(), "chainData.json")
			b, readErr := os.ReadFile(path)
			if tc.err != nil {
				if readErr == nil {
					t.Fatal("expected no file to be written")
				}
				return
			}

			if readErr != nil {
				t.Fatal(readErr)
			}

			var got map[string]any
			if err := json.Unmarshal(b, &got); err != nil {
				t.Fatal(err)
			}

			if got["displayName"] != "Steve" {
				t.Fatalf("unexpected data %v", got)
			}
		})
	}
}

func TestMultiSink_Save(t *testing.T) {
	failing := &recordingSink{err: errors.New("unavailable")}
	ok := &recordingSink{}

	err := MultiSink{failing, ok}.Save(uuid.Nil, "skinData", nil)
	if !errors.Is(err, failing.err) {
		t.Fatalf("expected %v; got %v", failing.err, err)
	}

	if len(ok.names) != 1 || ok.names[0] != "skinData" {
		t.Fatalf("expected following sinks to be saved to; got %v", ok.names)
	}
}

func TestLogSink_Save(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	if err := (LogSink{Logger: zap.New(core)}).Save(uuid.Nil, "skinData", map[string]any{}); err != nil {
		t.Fatal(err)
	}

	if logs.FilterField(zap.String("name", "skinData")).Len() != 1 {
		t.Fatal("expected data to be logged")
	}
}

func TestRedisKey(t *testing.T) {
	a := uuid.Must(uuid.NewV4())
	b := uuid.Must(uuid.NewV4())

	if redisKey(a, "chainData") != redisKey(a, "chainData") {
		t.Error("expected keys to be deterministic")
	}

	if redisKey(a, "chainData") == redisKey(a, "skinData") || redisKey(a, "chainData") == redisKey(b, "chainData") {
		t.Error("expected distinct keys")
	}

	if l := len(redisKey(a, "chainData")); l != len(redisKeyPrefix)+16 {
		t.Errorf("expected a 64 bit hash; got key length %d", l)
	}
}

func TestNewRedisSink_InvalidURI(t *testing.T) {
	if _, err := NewRedisSink(RedisConfig{URI: "http://localhost"}); err == nil {
		t.Fatal("expected an error for a non redis uri")
	}
}
