package utils

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/sirupsen/logrus"
)

// GetCacheLifespan reads CACHE_LIFESPAN_SECONDS (default 300).
func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN_SECONDS"))
	if err != nil || lifespan <= 0 {
		lifespan = 300
	}
	return time.Duration(lifespan) * time.Second
}

// CachedJSON returns the cached value at key, or calls load and stores the result.
// Redis failures degrade to calling load directly.
func CachedJSON[T any](ctx context.Context, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	found, err := config.GetRedisObject(ctx, key, &cached)
	if err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field": "CachedJSON",
			"key":   key,
		}).Warn("redis read failed; loading from database: " + err.Error())
	}
	if found {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if err := config.SetRedisObject(ctx, key, value, ttl); err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field": "CachedJSON",
			"key":   key,
		}).Warn("redis write failed: " + err.Error())
	}
	return value, nil
}

func InvalidateCache(ctx context.Context, keys ...string) {
	if err := config.RemoveRedisKey(ctx, keys...); err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field": "InvalidateCache",
			"keys":  keys,
		}).Warn("redis delete failed: " + err.Error())
	}
}
