package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stored values carry a one-byte marker so payloads written before and after a
// threshold change both decode.
const (
	markRaw  byte = 'r'
	markGzip byte = 'z'

	defaultCompressAbove = 4 << 10
	defaultKeyPrefix     = "stockpulse:"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// CompressAbove gzips values larger than this many bytes; negative disables.
	CompressAbove int
}

// RedisCache shares raw provider payloads between instances.
type RedisCache struct {
	cli           *redis.Client
	prefix        string
	compressAbove int
}

func NewRedisCache(cfg RedisConfig) *RedisCache {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultKeyPrefix
	}
	if cfg.CompressAbove == 0 {
		cfg.CompressAbove = defaultCompressAbove
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &RedisCache{cli: rdb, prefix: cfg.Prefix, compressAbove: cfg.CompressAbove}
}

func (r *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.cli.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := unpack(b)
	if err != nil {
		return nil, false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b, err := pack(value, r.compressAbove)
	if err != nil {
		return err
	}
	return r.cli.Set(ctx, r.prefix+key, b, ttl).Err()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.cli.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.cli.Close()
}

func pack(value []byte, compressAbove int) ([]byte, error) {
	if compressAbove < 0 || len(value) <= compressAbove {
		return append([]byte{markRaw}, value...), nil
	}
	var buf bytes.Buffer
	buf.WriteByte(markGzip)
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(value); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpack(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty value")
	}
	switch b[0] {
	case markRaw:
		return b[1:], nil
	case markGzip:
		zr, err := gzip.NewReader(bytes.NewReader(b[1:]))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("unknown marker %q", b[0])
	}
}
