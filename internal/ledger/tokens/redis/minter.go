// Package redis mints certificate tokens with Redis counters. Serials come
// from INCR on a per-class key; metadata lands in a hash keyed by serial.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"crossledger/internal/ledger"
	"crossledger/internal/platform/redis"
	"crossledger/pkg/platform/sentinel"
)

// mintScript assigns the next serial and stores metadata atomically.
var mintScript = goredis.NewScript(`
local serial = redis.call("INCR", KEYS[1])
redis.call("HSET", KEYS[2], serial, ARGV[1])
return serial
`)

type Minter struct {
	client *redis.Client
}

func New(client *redis.Client) *Minter {
	return &Minter{client: client}
}

func (m *Minter) Mint(ctx context.Context, class ledger.TokenClass, metadata []byte) (uint64, error) {
	serial, err := mintScript.Run(ctx, m.client,
		[]string{m.client.Key("tokens", string(class), "serial"), m.client.Key("tokens", string(class), "metadata")},
		metadata,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("mint %s token: %w: %w", class, sentinel.ErrUnavailable, err)
	}
	return uint64(serial), nil
}

// Metadata returns what was stored with a minted token.
func (m *Minter) Metadata(ctx context.Context, class ledger.TokenClass, serial uint64) ([]byte, error) {
	data, err := m.client.HGet(ctx, m.client.Key("tokens", string(class), "metadata"), strconv.FormatUint(serial, 10)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%s token %d: %w", class, serial, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s token: %w", class, err)
	}
	return data, nil
}
