/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package nonce

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
)

const keyPrefix = "provider:nonce:"

// advanceScript compares scaled nonces as non-negative integer strings and stores the new nonce when greater.
// ARGV[3] is the scaled initial nonce of a new address.
var advanceScript = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "scaled")
if not cur then
  cur = ARGV[3]
end
local n = ARGV[1]
if string.len(n) < string.len(cur) or (string.len(n) == string.len(cur) and n <= cur) then
  return 0
end
redis.call("HSET", KEYS[1], "scaled", ARGV[1], "nonce", ARGV[2])
return 1
`)

// RedisStore keeps nonces in redis hashes.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore returns a nonce store backed by client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient creates a redis client.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), nil
}

// Get returns the last accepted nonce of the address.
func (s *RedisStore) Get(ctx context.Context, address string) (string, error) {
	n, err := s.client.HGet(ctx, keyPrefix+key(address), "nonce").Result()
	if errors.Is(err, redis.Nil) {
		return Initial, nil
	}

	if err != nil {
		return "", errors.Wrap(err, "get nonce")
	}

	return n, nil
}

// Advance stores nonce if it is greater than the stored one.
func (s *RedisStore) Advance(ctx context.Context, address, nonce string) error {
	args, err := advanceArgs(nonce)
	if err != nil {
		return err
	}

	res, err := advanceScript.Run(ctx, s.client, []string{keyPrefix + key(address)}, args...).Int()
	if err != nil {
		return errors.Wrap(err, "advance nonce")
	}

	if res == 0 {
		current, _ := s.Get(ctx, address) //nolint:errcheck

		return errors.Wrapf(ErrStaleNonce, "got %s, last used %s", nonce, current)
	}

	logger.Debug("nonce advanced", logfields.WithAddress(key(address)), logfields.WithNonce(nonce))

	return nil
}

// advanceArgs returns the script arguments: scaled nonce, nonce and scaled Initial.
func advanceArgs(nonce string) ([]interface{}, error) {
	sc, err := scaled(nonce)
	if err != nil {
		return nil, err
	}

	initial, err := scaled(Initial)
	if err != nil {
		return nil, err
	}

	return []interface{}{sc, nonce, initial}, nil
}
