// Package mirror keeps a Redis copy of live session snapshots for the HTTP read endpoints.
// The coordinator never reads it back.
package mirror

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/url"
    "sort"
    "strconv"
    "strings"
    "time"

    "github.com/park285/chess-rooms/internal/room"
    "github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

var ErrNotFound = errors.New("snapshot not found")

type Store struct {
    rdb *redis.Client
    ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Store {
    if ttl <= 0 { ttl = defaultTTL }
    return &Store{rdb: rdb, ttl: ttl}
}

// Open connects to redisURL and pings it.
func Open(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
    opts, err := parseRedisURL(redisURL)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opts)
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return New(rdb, ttl), nil
}

func (s *Store) Close() error {
    if s == nil || s.rdb == nil { return nil }
    return s.rdb.Close()
}

func (s *Store) keySession(id string) string { return "rooms:session:" + strings.TrimSpace(id) }
func (s *Store) keyLive() string             { return "rooms:live" }

// Save overwrites the snapshot of snap.ID and marks it live.
func (s *Store) Save(ctx context.Context, snap room.Snapshot) error {
    raw, err := json.Marshal(snap)
    if err != nil { return err }
    pipe := s.rdb.TxPipeline()
    pipe.Set(ctx, s.keySession(snap.ID), raw, s.ttl)
    pipe.SAdd(ctx, s.keyLive(), snap.ID)
    pipe.Expire(ctx, s.keyLive(), s.ttl)
    if _, err := pipe.Exec(ctx); err != nil { return fmt.Errorf("save snapshot %s: %w", snap.ID, err) }
    return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
    pipe := s.rdb.TxPipeline()
    pipe.Del(ctx, s.keySession(id))
    pipe.SRem(ctx, s.keyLive(), id)
    if _, err := pipe.Exec(ctx); err != nil { return fmt.Errorf("delete snapshot %s: %w", id, err) }
    return nil
}

func (s *Store) Load(ctx context.Context, id string) (room.Snapshot, error) {
    var snap room.Snapshot
    raw, err := s.rdb.Get(ctx, s.keySession(id)).Bytes()
    if err == redis.Nil { return snap, ErrNotFound }
    if err != nil { return snap, err }
    if err := json.Unmarshal(raw, &snap); err != nil { return snap, err }
    return snap, nil
}

// List returns every live snapshot ordered by id. Ids whose snapshot expired are pruned from the
// live set.
func (s *Store) List(ctx context.Context) ([]room.Snapshot, error) {
    ids, err := s.rdb.SMembers(ctx, s.keyLive()).Result()
    if err != nil { return nil, err }
    if len(ids) == 0 { return []room.Snapshot{}, nil }
    sort.Strings(ids)

    keys := make([]string, len(ids))
    for i, id := range ids { keys[i] = s.keySession(id) }
    vals, err := s.rdb.MGet(ctx, keys...).Result()
    if err != nil { return nil, err }

    out := make([]room.Snapshot, 0, len(ids))
    var stale []any
    for i, v := range vals {
        str, ok := v.(string)
        if !ok {
            stale = append(stale, ids[i])
            continue
        }
        var snap room.Snapshot
        if err := json.Unmarshal([]byte(str), &snap); err != nil { continue }
        out = append(out, snap)
    }
    if len(stale) > 0 { _ = s.rdb.SRem(ctx, s.keyLive(), stale...).Err() }
    return out, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
    u, err := url.Parse(strings.TrimSpace(raw))
    if err != nil { return nil, err }
    if u.Scheme != "redis" && u.Scheme != "rediss" { return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme) }
    db := 0
    if p := strings.TrimPrefix(u.Path, "/"); p != "" { if n, err := strconv.Atoi(p); err == nil { db = n } }
    pass, _ := u.User.Password()
    return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
