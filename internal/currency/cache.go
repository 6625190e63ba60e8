package currency

import (
	"fmt"
	"sync"
	"time"

	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"

	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"
)

var ratesBucket = []byte("rates")

// CachedResolver memoizes rates per (currency, day). Missing rates are not
// cached so a rate added later is picked up.
type CachedResolver struct {
	inner Resolver
	cache map[string]decimal.Decimal
	mutex sync.RWMutex
}

// NewCachedResolver wraps inner with an in-memory cache.
func NewCachedResolver(inner Resolver) *CachedResolver {
	return &CachedResolver{inner: inner, cache: make(map[string]decimal.Decimal)}
}

func cacheKey(code string, date time.Time) string {
	return fmt.Sprintf("%s|%s", code, models.FormatDate(date))
}

// Rate implements Resolver
func (c *CachedResolver) Rate(code string, date time.Time) (decimal.Decimal, error) {
	key := cacheKey(code, date)

	c.mutex.RLock()
	rate, ok := c.cache[key]
	c.mutex.RUnlock()
	if ok {
		return rate, nil
	}

	rate, err := c.inner.Rate(code, date)
	if err != nil {
		return rate, err
	}

	c.mutex.Lock()
	c.cache[key] = rate
	c.mutex.Unlock()
	return rate, nil
}

// BoltResolver records every rate the inner resolver returns in a bbolt
// bucket. The rate table always wins; the recorded rate is only used when
// the table no longer knows the currency, so a corrected table is picked up
// while a restarted server keeps converting with the last rate it saw.
// Wrap it in a CachedResolver to avoid a bbolt write per lookup.
type BoltResolver struct {
	inner  Resolver
	db     *bolt.DB
	logger logger.Logger
}

// NewBoltResolver wraps inner with a persistent record stored in db.
func NewBoltResolver(db *bolt.DB, inner Resolver) (*BoltResolver, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ratesBucket)
		return err
	})
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "create rate bucket", err)
	}
	return &BoltResolver{
		inner:  inner,
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("currency"),
	}, nil
}

// Rate implements Resolver
func (b *BoltResolver) Rate(code string, date time.Time) (decimal.Decimal, error) {
	key := []byte(cacheKey(code, date))

	rate, err := b.inner.Rate(code, date)
	if err != nil {
		if recorded, ok := b.recorded(key); ok {
			return recorded, nil
		}
		return rate, err
	}

	if recorded, ok := b.recorded(key); ok && recorded.Equal(rate) {
		return rate, nil
	}
	text, _ := rate.MarshalText()
	if err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ratesBucket).Put(key, text)
	}); err != nil {
		b.logger.WithError(err).WithFields(logger.Fields{
			"currency": code,
			"date":     models.FormatDate(date),
		}).Warn("Failed to record rate")
	}
	return rate, nil
}

func (b *BoltResolver) recorded(key []byte) (decimal.Decimal, bool) {
	var cached []byte
	_ = b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(ratesBucket).Get(key); v != nil {
			cached = append([]byte(nil), v...)
		}
		return nil
	})
	if cached == nil {
		return decimal.Zero, false
	}
	var rate decimal.Decimal
	if err := rate.UnmarshalText(cached); err != nil {
		return decimal.Zero, false
	}
	return rate, true
}
