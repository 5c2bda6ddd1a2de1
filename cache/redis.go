// Package cache keeps the last seat snapshot of every center in redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/gamecenter/config"
	"github.com/wfunc/gamecenter/seat"
)

var ErrMiss = errors.New("snapshot not cached")

const keyPrefix = "gamecenter:seats:"

type snapshot struct {
	CenterID string      `json:"center_id"`
	Seats    []seat.Seat `json:"seats"`
	StoredAt time.Time   `json:"stored_at"`
}

func key(centerID string) string {
	return keyPrefix + centerID
}

func encode(inv *seat.Inventory, now time.Time) ([]byte, error) {
	return json.Marshal(snapshot{CenterID: inv.CenterID(), Seats: inv.Seats(), StoredAt: now})
}

func decode(centerID string, data []byte) (*seat.Inventory, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	if snap.CenterID != centerID {
		return nil, fmt.Errorf("cached snapshot for %s stored under %s", snap.CenterID, centerID)
	}
	return seat.NewInventory(snap.CenterID, snap.Seats), nil
}

// SnapshotCache implements feed.SnapshotStore.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache connects and pings redis.
func NewSnapshotCache(cfg config.CacheConfig) (*SnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Ping the server with a short timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return &SnapshotCache{client: client, ttl: cfg.TTL}, nil
}

func (c *SnapshotCache) Save(ctx context.Context, inv *seat.Inventory) error {
	data, err := encode(inv, time.Now())
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(inv.CenterID()), data, c.ttl).Err()
}

func (c *SnapshotCache) Load(ctx context.Context, centerID string) (*seat.Inventory, error) {
	data, err := c.client.Get(ctx, key(centerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return decode(centerID, data)
}

func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
