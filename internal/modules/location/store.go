// README: Latest driver position, kept in Redis GEO or in memory.
package location

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"delivery/internal/types"
)

// Store keeps the most recent fix of the driver.
type Store interface {
	Save(ctx context.Context, f Fix) error
	Latest(ctx context.Context) (Fix, bool, error)
}

const geoKey = "geo:drivers"

// RedisStore keeps the position as a GEO member so it survives an agent
// restart, and the fix time and accuracy in a hash next to it.
type RedisStore struct {
	redis  *redis.Client
	member string
}

func NewRedisStore(client *redis.Client, driverKey string) *RedisStore {
	return &RedisStore{redis: client, member: driverKey}
}

func (s *RedisStore) metaKey() string {
	return "loc:meta:" + s.member
}

func (s *RedisStore) Save(ctx context.Context, f Fix) error {
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.GeoAdd(ctx, geoKey, &redis.GeoLocation{Name: s.member, Longitude: f.Position.Lng, Latitude: f.Position.Lat})
		p.HSet(ctx, s.metaKey(),
			"ts", f.RecordedAt.UnixMilli(),
			"acc", strconv.FormatFloat(f.AccuracyM, 'f', -1, 64))
		return nil
	})
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context) (Fix, bool, error) {
	pos, err := s.redis.GeoPos(ctx, geoKey, s.member).Result()
	if errors.Is(err, redis.Nil) {
		return Fix{}, false, nil
	}
	if err != nil {
		return Fix{}, false, fmt.Errorf("read position: %w", err)
	}
	if len(pos) == 0 || pos[0] == nil {
		return Fix{}, false, nil
	}
	f := Fix{Position: types.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude}}

	meta, err := s.redis.HGetAll(ctx, s.metaKey()).Result()
	if err != nil {
		return Fix{}, false, fmt.Errorf("read position meta: %w", err)
	}
	if ms, err := strconv.ParseInt(meta["ts"], 10, 64); err == nil {
		f.RecordedAt = time.UnixMilli(ms)
	}
	if acc, err := strconv.ParseFloat(meta["acc"], 64); err == nil {
		f.AccuracyM = acc
	}
	return f, true, nil
}

type MemoryStore struct {
	mu  sync.RWMutex
	fix *Fix
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, f Fix) error {
	s.mu.Lock()
	s.fix = &f
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Latest(context.Context) (Fix, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fix == nil {
		return Fix{}, false, nil
	}
	return *s.fix, true, nil
}
