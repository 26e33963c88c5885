package subscribers

import (
	"context"
	"slices"

	"github.com/valkey-io/valkey-go"
)

const DefaultValkeyKey = "weather:subscribers"

// ValkeyStore keeps subscribers in a single Valkey set.
type ValkeyStore struct {
	client valkey.Client
	key    string
}

func NewValkeyStore(client valkey.Client, key string) *ValkeyStore {
	if key == "" {
		key = DefaultValkeyKey
	}
	return &ValkeyStore{client: client, key: key}
}

func (s *ValkeyStore) Add(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Sadd().Key(s.key).Member(id).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *ValkeyStore) Remove(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Srem().Key(s.key).Member(id).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *ValkeyStore) Contains(ctx context.Context, id string) (bool, error) {
	return s.client.Do(ctx, s.client.B().Sismember().Key(s.key).Member(id).Build()).AsBool()
}

func (s *ValkeyStore) List(ctx context.Context) ([]string, error) {
	members, err := s.client.Do(ctx, s.client.B().Smembers().Key(s.key).Build()).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return []string{}, nil
		}
		return nil, err
	}
	slices.Sort(members)
	return members, nil
}

var _ Store = (*ValkeyStore)(nil)
