package dienstplan

import (
	"bytes"
	"context"
	"encoding/gob"
	"perdisweb-backend/lib/kvstore"
	"perdisweb-backend/lib/scrapers/perdis"
	"perdisweb-backend/lib/timezone"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CacheTTL shields the portal from repeated scrapes. The roster
// changes rarely, the portal is slow, and stale-by-an-hour is fine
// for a duty plan.
const CacheTTL = time.Hour

const cacheKeyPrefix = "roster:"

type cacheEntry struct {
	Data      perdis.DayRoster
	FetchedAt int64 // unix nanoseconds
}

// rosterCache memoizes day rosters in an injected key-value store.
// Store failures are never fatal: a broken cache behaves like an
// empty one.
type rosterCache struct {
	store kvstore.Store
	ttl   time.Duration
	now   func() time.Time
}

func newRosterCache(store kvstore.Store, ttl time.Duration) *rosterCache {
	return &rosterCache{store: store, ttl: ttl, now: timezone.Now}
}

func cacheKey(date string) string {
	return cacheKeyPrefix + date
}

// Get returns the cached day roster, or false for absent, expired or
// unreadable entries. Expired entries are purged on the way out.
func (c *rosterCache) Get(ctx context.Context, date string) (perdis.DayRoster, bool) {
	ctx, span := tracer.Start(ctx, "cache:Get")
	defer span.End()
	span.SetAttributes(attribute.String("date", date))

	serialized, err := c.store.Get(ctx, cacheKey(date))
	if err == kvstore.ErrNotFound {
		return nil, false
	}
	if err != nil {
		span.RecordError(err)
		span.AddEvent("CACHE ERROR", trace.WithAttributes(
			attribute.String("log.severity", "WARN"),
		))
		return nil, false
	}

	var entry cacheEntry
	err = gob.NewDecoder(bytes.NewReader(serialized)).Decode(&entry)
	if err != nil {
		span.RecordError(err)
		c.remove(ctx, date)
		return nil, false
	}

	if c.now().Sub(time.Unix(0, entry.FetchedAt)) > c.ttl {
		span.AddEvent("CACHE EXPIRED")
		c.remove(ctx, date)
		return nil, false
	}

	// nil would read as "never fetched"; an entry always means the
	// date was confirmed, even with zero trips
	if entry.Data == nil {
		entry.Data = perdis.DayRoster{}
	}
	span.SetStatus(codes.Ok, "CACHE HIT")
	return entry.Data, true
}

func (c *rosterCache) Put(ctx context.Context, date string, data perdis.DayRoster) {
	ctx, span := tracer.Start(ctx, "cache:Put")
	defer span.End()
	span.SetAttributes(attribute.String("date", date))

	serialized := bytes.NewBuffer(nil)
	err := gob.NewEncoder(serialized).Encode(cacheEntry{
		Data:      data,
		FetchedAt: c.now().UnixNano(),
	})
	if err != nil {
		span.RecordError(err)
		return
	}

	err = c.store.Set(ctx, cacheKey(date), serialized.Bytes())
	if err != nil {
		span.RecordError(err)
		span.AddEvent("CACHE ERROR", trace.WithAttributes(
			attribute.String("log.severity", "WARN"),
		))
	}
}

func (c *rosterCache) Invalidate(ctx context.Context, date string) {
	c.remove(ctx, date)
}

func (c *rosterCache) Clear(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "cache:Clear")
	defer span.End()

	keys, err := c.store.Keys(ctx)
	if err != nil {
		span.RecordError(err)
		return
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, cacheKeyPrefix) {
			continue
		}
		err := c.store.Remove(ctx, key)
		if err != nil {
			span.RecordError(err)
		}
	}
}

func (c *rosterCache) remove(ctx context.Context, date string) {
	err := c.store.Remove(ctx, cacheKey(date))
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
	}
}
