// Package adaptercache caches constructed provider adapters keyed by
// "provider:model" so repeated correction requests against the same
// backend reuse one adapter instance instead of re-resolving
// credentials and base URLs on every call. The cache is flushed
// whenever the configuration store reports a mutation.
package adaptercache

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/weimengliu/textproof/internal/config"
	"github.com/weimengliu/textproof/internal/provider"
)

const defaultSize = 64

// Cache is a bounded, thread-safe map of "provider:model" to a
// resolved Adapter.
type Cache struct {
	lru *lru.Cache
	log *logrus.Logger
}

// New builds a cache of the given capacity (0 uses the default) and
// wires it to flush entirely whenever cfgStore reports a settings
// change, matching spec.md §5's "cleared on every config mutation".
func New(size int, cfgStore *config.Store, log *logrus.Logger) (*Cache, error) {
	if size <= 0 {
		size = defaultSize
	}
	underlying, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	c := &Cache{lru: underlying, log: log}

	if cfgStore != nil {
		cfgStore.OnChange(func(previous, current config.Settings) {
			c.Purge()
		})
	}
	return c, nil
}

func key(providerName, model string) string { return providerName + ":" + model }

// Get returns the cached adapter for provider:model, if present.
func (c *Cache) Get(providerName, model string) (provider.Adapter, bool) {
	v, ok := c.lru.Get(key(providerName, model))
	if !ok {
		return nil, false
	}
	return v.(provider.Adapter), true
}

// GetOrCreate returns the cached adapter, building and storing one via
// build() on a miss.
func (c *Cache) GetOrCreate(providerName, model string, build func() (provider.Adapter, error)) (provider.Adapter, error) {
	if a, ok := c.Get(providerName, model); ok {
		return a, nil
	}
	a, err := build()
	if err != nil {
		return nil, err
	}
	c.lru.Add(key(providerName, model), a)
	return a, nil
}

// Purge drops every cached adapter.
func (c *Cache) Purge() {
	c.lru.Purge()
	if c.log != nil {
		c.log.Debug("adaptercache: purged after config change")
	}
}

// Len reports the number of cached adapters.
func (c *Cache) Len() int { return c.lru.Len() }
