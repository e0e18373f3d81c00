package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache is the by-id lookup cache used by the services. Implementations
// must tolerate being unavailable; a failed lookup counts as a miss.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Option configures a service.
type Option func(*options)

type options struct {
	now       func() time.Time
	cache     Cache
	publisher EventPublisher
}

func defaultOptions() options {
	return options{
		now: func() time.Time { return time.Now().UTC() },
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the time source. Returned times are converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = func() time.Time { return now().UTC() }
	}
}

// WithCache enables cache-aside lookups by ID.
func WithCache(c Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithPublisher publishes domain events after successful mutations.
func WithPublisher(p EventPublisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// refreshed returns the new UpdatedAt for a record last updated at prev.
// It never moves backwards, even if the clock does.
func refreshed(now, prev time.Time) time.Time {
	if now.Before(prev) {
		return prev
	}
	return now
}

// clampTime bounds t to [lo, hi].
func clampTime(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

func userCacheKey(id uint) string {
	return "user:" + uintToString(id)
}

func repositoryCacheKey(id uint) string {
	return repositoryCachePrefix + uintToString(id)
}

const repositoryCachePrefix = "repository:"

// cacheGet decodes key into dest and reports whether it was found.
// Cache failures are logged and treated as misses.
func (o options) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if o.cache == nil {
		return false
	}
	found, err := o.cache.GetJSON(ctx, key, dest)
	if err != nil {
		log.Warn().Ctx(ctx).Err(err).Str("key", key).Msg("cache lookup failed")
		return false
	}
	return found
}

func (o options) cacheSet(ctx context.Context, key string, value interface{}) {
	if o.cache == nil {
		return
	}
	if err := o.cache.SetJSON(ctx, key, value); err != nil {
		log.Warn().Ctx(ctx).Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (o options) cacheDelete(ctx context.Context, keys ...string) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Delete(ctx, keys...); err != nil {
		log.Warn().Ctx(ctx).Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

func (o options) cacheDeletePrefix(ctx context.Context, prefix string) {
	if o.cache == nil {
		return
	}
	if err := o.cache.DeletePrefix(ctx, prefix); err != nil {
		log.Warn().Ctx(ctx).Err(err).Str("prefix", prefix).Msg("cache invalidation failed")
	}
}
