package pulse

import (
	"sync"
	"time"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

// Cache guarda UN snapshot del upstream con TTL.
// Replace cambia el puntero entero: un lector nunca ve pares de un snapshot
// con el FetchedAt de otro.
type Cache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	entry *domain.Snapshot
}

// NewCache crea una cache vacía. now == nil usa time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now}
}

// TTL devuelve el time-to-live configurado.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Now devuelve la hora del reloj de la cache.
func (c *Cache) Now() time.Time {
	return c.now()
}

// IsFresh es true si hay entrada y now - FetchedAt < ttl.
func (c *Cache) IsFresh() bool {
	_, ok := c.Fresh()
	return ok
}

// Fresh devuelve el snapshot solo si está fresco, en una única lectura.
func (c *Cache) Fresh() (domain.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil || c.now().Sub(c.entry.FetchedAt) >= c.ttl {
		return domain.Snapshot{}, false
	}
	return *c.entry, true
}

// Snapshot devuelve el último snapshot guardado, fresco o no.
func (c *Cache) Snapshot() (domain.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return domain.Snapshot{}, false
	}
	return *c.entry, true
}

// Replace sustituye la entrada completa.
func (c *Cache) Replace(snap domain.Snapshot) {
	c.mu.Lock()
	c.entry = &snap
	c.mu.Unlock()
}

// Age devuelve la edad del snapshot; false si la cache está vacía.
func (c *Cache) Age() (time.Duration, bool) {
	snap, ok := c.Snapshot()
	if !ok {
		return 0, false
	}
	return c.now().Sub(snap.FetchedAt), true
}
