// Package redis stores graph script sources in Redis so a fleet of runners
// can share one component library: scripts are saved by name, listed through
// a sorted-set index, and re-parsed into a registry on load.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/weft/pkg/component"
	"github.com/aretw0/weft/pkg/dsl"
)

// ErrNotFound reports a script name with no stored source.
var ErrNotFound = errors.New("script not found")

// Store keeps script sources under a key prefix with a ZSET index for
// listing and lazy expiry.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for stored scripts.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix for stored scripts.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a store on an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "weft:script:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(name string) string { return s.prefix + name }
func (s *Store) indexKey() string       { return s.prefix + "index" }

// Save stores one script source and indexes it.
func (s *Store) Save(ctx context.Context, name, source string) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(name), source, s.ttl)

	// Index score doubles as expiry stamp for lazy cleanup in List.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: name})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving script %s: %w", name, err)
	}
	return nil
}

// Load retrieves one script source.
func (s *Store) Load(ctx context.Context, name string) (string, error) {
	val, err := s.client.Get(ctx, s.key(name)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("loading script %s: %w", name, err)
	}
	return val, nil
}

// Delete removes a script and its index entry.
func (s *Store) Delete(ctx context.Context, name string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(name))
	pipe.ZRem(ctx, s.indexKey(), name)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns stored script names, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("pruning expired scripts: %w", err)
	}
	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}
	return names, nil
}

// LoadAll parses every stored script and registers its component
// declarations into reg. Top-level instances in stored scripts are ignored;
// the store is a component library, not a deployment queue.
func (s *Store) LoadAll(ctx context.Context, reg *component.Registry) error {
	names, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		source, err := s.Load(ctx, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // expired between List and Load
			}
			return err
		}
		script, err := dsl.Parse(name, source)
		if err != nil {
			return err
		}
		if err := script.Register(reg); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
