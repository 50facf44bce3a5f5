package settings

import (
	"sync"
	"time"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

// table es un mapa por tipo de registro. Todo lo que entra y sale se copia
// con clone para que nadie comparta slices con el cache.
type table[T any] struct {
	mu    sync.RWMutex
	m     map[string]T
	clone func(T) T
}

func newTable[T any](clone func(T) T) *table[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &table[T]{m: map[string]T{}, clone: clone}
}

func (t *table[T]) get(key string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.m[key]
	if !ok {
		return v, false
	}
	return t.clone(v), true
}

func (t *table[T]) put(key string, v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[key] = t.clone(v)
}

// putIfAbsent no pisa una entrada que apareció mientras se hablaba con el store.
// Devuelve lo que quedó en el cache.
func (t *table[T]) putIfAbsent(key string, v T) T {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.m[key]; ok {
		return t.clone(cur)
	}
	t.m[key] = t.clone(v)
	return t.clone(v)
}

func (t *table[T]) delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, key)
}

func (t *table[T]) replace(m map[string]T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m = m
}

func (t *table[T]) values() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.m))
	for _, v := range t.m {
		out = append(out, t.clone(v))
	}
	return out
}

func (t *table[T]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

// Cache es el espejo en memoria del store. Es el único camino de lectura
// durante un comando; sólo el Service lo escribe, después de un write exitoso.
type Cache struct {
	guilds       *table[domain.GuildConfig]
	verification *table[domain.VerificationConfig]
	logging      *table[domain.LoggingConfig]
	joinLeave    *table[domain.JoinLeaveConfig]
	users        *table[domain.UserConfig]
	highlights   *table[domain.HighlightConfig]
	blacklist    *table[domain.BlacklistEntry]
}

func NewCache() *Cache {
	return &Cache{
		guilds:       newTable(domain.GuildConfig.Clone),
		verification: newTable[domain.VerificationConfig](nil),
		logging:      newTable[domain.LoggingConfig](nil),
		joinLeave:    newTable[domain.JoinLeaveConfig](nil),
		users:        newTable[domain.UserConfig](nil),
		highlights:   newTable(domain.HighlightConfig.Clone),
		blacklist:    newTable[domain.BlacklistEntry](nil),
	}
}

// Guild devuelve false si la guild nunca se cacheó; para tener una sí o sí
// está Service.EnsureGuild.
func (c *Cache) Guild(id string) (domain.GuildConfig, bool) { return c.guilds.get(id) }

func (c *Cache) Verification(guildID string) (domain.VerificationConfig, bool) {
	return c.verification.get(guildID)
}

func (c *Cache) Logging(guildID string) (domain.LoggingConfig, bool) { return c.logging.get(guildID) }

func (c *Cache) JoinLeave(guildID string) (domain.JoinLeaveConfig, bool) {
	return c.joinLeave.get(guildID)
}

func (c *Cache) User(id string) (domain.UserConfig, bool) { return c.users.get(id) }

func (c *Cache) Highlight(userID string) (domain.HighlightConfig, bool) {
	return c.highlights.get(userID)
}

func (c *Cache) Highlights() []domain.HighlightConfig { return c.highlights.values() }

// Blacklisted mira la entrada y su expiración.
func (c *Cache) Blacklisted(userID string, now time.Time) bool {
	b, ok := c.blacklist.get(userID)
	return ok && b.Active(now)
}

// dropGuild saca la guild y sus sub-registros (el store lo hace por cascade).
func (c *Cache) dropGuild(id string) {
	c.guilds.delete(id)
	c.verification.delete(id)
	c.logging.delete(id)
	c.joinLeave.delete(id)
}

// Stats para /healthz.
type Stats struct {
	Guilds     int `json:"guilds"`
	Users      int `json:"users"`
	Highlights int `json:"highlights"`
	Blacklist  int `json:"blacklist"`
}

func (c *Cache) Stats() Stats {
	return Stats{
		Guilds:     c.guilds.len(),
		Users:      c.users.len(),
		Highlights: c.highlights.len(),
		Blacklist:  c.blacklist.len(),
	}
}
