package diagnostics

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/cespare/xxhash/v2"
	"github.com/go-redis/redis/v9"
	"github.com/gofrs/uuid"
)

const redisKeyPrefix = "proxypass:diagnostics:"

type RedisConfig struct {
	URI     string            `mapstructure:"uri"`
	TTL     time.Duration     `mapstructure:"ttl"`
	MaxSize datasize.ByteSize `mapstructure:"maxSize"`
}

// RedisSink stores every blob as JSON under a key derived from the session and the name of the blob.
type RedisSink struct {
	cli          *redis.Client
	writeTimeout time.Duration
	ttl          time.Duration
	maxSize      datasize.ByteSize
}

func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	opts, err := redis.ParseURL(cfg.URI)
	if err != nil {
		return nil, err
	}

	return &RedisSink{
		cli:          redis.NewClient(opts),
		writeTimeout: opts.WriteTimeout,
		ttl:          cfg.TTL,
		maxSize:      cfg.MaxSize,
	}, nil
}

func redisKey(sessionID uuid.UUID, name string) string {
	key := xxhash.New()
	key.Write(sessionID.Bytes())
	key.WriteString(name)
	return redisKeyPrefix + hex.EncodeToString(key.Sum(nil))
}

func (s RedisSink) Save(sessionID uuid.UUID, name string, data any) error {
	b, err := marshal(data, s.maxSize)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	ctx := context.Background()
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}
	return s.cli.Set(ctx, redisKey(sessionID, name), b, s.ttl).Err()
}

func (s RedisSink) Close() error {
	return s.cli.Close()
}
