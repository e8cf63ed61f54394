// Package cache provides the TTL key-value stores that back market data lookups.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// DefaultTTL applies when a store is given a non-positive ttl
const DefaultTTL = 30 * time.Minute

// Store is a byte-oriented key-value cache with per-entry expiry.
// Get reports found=false for missing or expired keys; an error means the
// store itself could not be consulted.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores that can report connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrMiss is returned by GetJSON when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// GetJSON reads key and decodes it into a T
func GetJSON[T any](ctx context.Context, s Store, key string) (*T, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !found {
		return nil, ErrMiss
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return &v, nil
}

// SetJSON encodes v and writes it under key
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Ping checks s if it supports connectivity checks
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
