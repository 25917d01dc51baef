package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionCache holds builder sessions in memory with a sliding TTL.
type SessionCache[T any] struct {
	cache *cache.Cache
}

// NewSessionCache creates a cache whose entries expire ttl after last use.
func NewSessionCache[T any](ttl time.Duration) *SessionCache[T] {
	cleanup := ttl / 4
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &SessionCache[T]{cache: cache.New(ttl, cleanup)}
}

// Save stores session under id.
func (c *SessionCache[T]) Save(id uuid.UUID, session T) {
	c.cache.Set(id.String(), session, cache.DefaultExpiration)
}

// Get returns the session for id and extends its expiry. A session deleted
// between the read and the extension stays deleted.
func (c *SessionCache[T]) Get(id uuid.UUID) (T, bool) {
	var zero T
	key := id.String()
	x, found := c.cache.Get(key)
	if !found {
		return zero, false
	}
	session := x.(T)
	if err := c.cache.Replace(key, session, cache.DefaultExpiration); err != nil {
		return zero, false
	}
	return session, true
}

// Delete removes the session for id.
func (c *SessionCache[T]) Delete(id uuid.UUID) {
	c.cache.Delete(id.String())
}

// Count returns the number of cached sessions, including expired ones not yet purged.
func (c *SessionCache[T]) Count() int {
	return c.cache.ItemCount()
}

// OnEvicted registers fn to run when a session expires or is deleted.
func (c *SessionCache[T]) OnEvicted(fn func(id string)) {
	c.cache.OnEvicted(func(key string, _ interface{}) {
		fn(key)
	})
}

// Flush discards every session and returns how many were held.
func (c *SessionCache[T]) Flush() int {
	n := c.cache.ItemCount()
	c.cache.Flush()
	return n
}
