// Package redis streams decision records into a capped Redis stream.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/zen-systems/tierroute/pkg/router"
	"github.com/zen-systems/tierroute/pkg/store"
)

// DefaultStream is the stream key used when Config.Stream is empty.
const DefaultStream = "tierroute:decisions"

// Config holds the connection and stream settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen caps the stream approximately. Zero means 10000.
	MaxLen int64
}

// Store appends records with XADD and reads them back with XREVRANGE.
type Store struct {
	rdb    *goredis.Client
	stream string
	maxLen int64
}

var _ store.Store = (*Store)(nil)

// New connects and pings the server.
func New(ctx context.Context, cfg Config) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewFromClient(rdb, cfg.Stream, cfg.MaxLen), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *goredis.Client, stream string, maxLen int64) *Store {
	if stream == "" {
		stream = DefaultStream
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &Store{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (s *Store) Append(ctx context.Context, rec router.DecisionRecord) error {
	values, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	err = s.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd failed: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]router.DecisionRecord, error) {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}
	msgs, err := s.rdb.XRevRangeN(ctx, s.stream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange failed: %w", err)
	}
	return decodeMessages(msgs)
}

// Stats scans the whole stream, which MaxLen keeps bounded.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	msgs, err := s.rdb.XRange(ctx, s.stream, "-", "+").Result()
	if err != nil {
		return store.Stats{}, fmt.Errorf("xrange failed: %w", err)
	}
	records, err := decodeMessages(msgs)
	if err != nil {
		return store.Stats{}, err
	}
	return store.Summarize(records), nil
}

// Cleanup trims entries older than cutoff. Entry IDs carry the server's
// append time in milliseconds.
func (s *Store) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.rdb.XTrimMinID(ctx, s.stream, fmt.Sprintf("%d-0", cutoff.UnixMilli())).Result()
	if err != nil {
		return 0, fmt.Errorf("xtrim failed: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func encodeRecord(rec router.DecisionRecord) (map[string]interface{}, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode decision: %w", err)
	}
	return map[string]interface{}{
		"id":      rec.ID,
		"backend": rec.Backend,
		"record":  string(data),
	}, nil
}

func decodeMessages(msgs []goredis.XMessage) ([]router.DecisionRecord, error) {
	records := make([]router.DecisionRecord, 0, len(msgs))
	for _, msg := range msgs {
		rec, err := decodeRecord(msg.Values)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", msg.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(values map[string]interface{}) (router.DecisionRecord, error) {
	var rec router.DecisionRecord
	raw, ok := values["record"].(string)
	if !ok {
		return rec, errors.New("missing record field")
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return rec, fmt.Errorf("decode decision: %w", err)
	}
	return rec, nil
}
