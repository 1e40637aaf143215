package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/threadwise/agentd/internal/store"
)

// Janitor periodically prunes chunks whose parent document is gone. A redis
// lock keeps replicas from pruning concurrently.
type Janitor struct {
	Store *store.Store
	Rdb   *redis.Client
	Cron  string
	Stop  chan struct{}

	logger *log.Logger
	last   time.Time
}

func (j *Janitor) Start() {
	if j.logger == nil {
		j.logger = log.New(log.Writer(), "[JANITOR] ", log.LstdFlags)
	}
	j.last = time.Now()
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-j.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				if j.due() {
					j.tick()
				}
			}
		}
	}()
}

// due reports whether the cron schedule fired since the last tick.
// Invalid expressions fall back to hourly.
func (j *Janitor) due() bool {
	now := time.Now()
	expr, err := cronexpr.Parse(j.Cron)
	if err != nil {
		if now.Sub(j.last) >= time.Hour {
			j.last = now
			return true
		}
		return false
	}
	next := expr.Next(j.last)
	if !next.After(now) {
		j.last = now
		return true
	}
	return false
}

func (j *Janitor) tick() {
	ctx := context.Background()
	if j.Rdb != nil {
		ok, _ := j.Rdb.SetNX(ctx, "janitor:lock", "1", 2*time.Minute).Result()
		if !ok {
			return
		}
		defer j.Rdb.Del(ctx, "janitor:lock")
	}
	pruned, err := j.Store.PruneOrphanChunks(ctx)
	if err != nil {
		j.logger.Printf("prune failed: %v", err)
		return
	}
	if pruned > 0 {
		j.logger.Printf("pruned %d orphan chunks", pruned)
	}
}
