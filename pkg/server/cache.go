package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// reportCache keeps serialized extraction reports keyed by program id. The
// in-process LRU answers hot lookups; when a Redis address is configured the
// same entries are persisted there so restarts and replicas share results.
type reportCache struct {
	lru *expirable.LRU[string, []byte]
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func newReportCache(size int, ttl time.Duration, redisAddr, redisPassword string) *reportCache {
	c := &reportCache{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
		ttl: ttl,
		log: slog.With("component", "server.reportCache"),
	}
	if redisAddr != "" {
		c.rdb = redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: redisPassword,
		})
		c.log.Info("report persistence enabled", "addr", redisAddr)
	}
	return c
}

func (c *reportCache) key(programID string) string {
	return "auger:report:" + programID
}

func (c *reportCache) Get(ctx context.Context, programID string) ([]byte, bool) {
	if body, ok := c.lru.Get(programID); ok {
		return body, true
	}
	if c.rdb == nil {
		return nil, false
	}
	body, err := c.rdb.Get(ctx, c.key(programID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn("redis lookup failed", "program", programID, "error", err)
		return nil, false
	}
	c.lru.Add(programID, body)
	return body, true
}

func (c *reportCache) Put(ctx context.Context, programID string, body []byte) {
	c.lru.Add(programID, body)
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(programID), body, c.ttl).Err(); err != nil {
		c.log.Warn("redis store failed", "program", programID, "error", err)
	}
}
