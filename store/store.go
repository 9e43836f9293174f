package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Marshaler serializes values for the byte-oriented backends.
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

// Store is a typed view over a [Client].
type Store[V any] struct {
	client    *Client
	prefix    string
	marshaler Marshaler[V]
}

// New creates a typed view. A nil Marshaler selects JSON.
func New[V any](client *Client, m Marshaler[V], opts ...ViewOption) *Store[V] {
	o := &viewOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if m == nil {
		m = jsonMarshaler[V]{}
	}

	return &Store[V]{
		client:    client,
		prefix:    o.prefix,
		marshaler: m,
	}
}

// Client returns the underlying connection owner.
func (s *Store[V]) Client() *Client {
	return s.client
}

// Get returns the value for key, or [ErrNotFound] when it is absent or has
// expired.
func (s *Store[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	data, err := s.client.get(ctx, s.key(key))
	if err != nil {
		return zero, err
	}

	return s.marshaler.Unmarshal(data)
}

// Set stores value under key. A positive ttl expires the entry after that
// duration; zero or negative keeps it until deleted.
func (s *Store[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := s.marshaler.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.set(ctx, s.key(key), data, ttl)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store[V]) Delete(ctx context.Context, key string) error {
	return s.client.del(ctx, s.key(key))
}

func (s *Store[V]) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}
