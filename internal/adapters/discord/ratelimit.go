package discord

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// userLimiter da un token cada win por clave (usuario), con ráfaga de burst.
type userLimiter struct {
	mu    sync.Mutex
	lim   map[string]*entry
	every rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time
}

type entry struct {
	l    *rate.Limiter
	seen time.Time
}

func newUserLimiter(window time.Duration, burst int) *userLimiter {
	if burst < 1 {
		burst = 1
	}
	return &userLimiter{
		lim:   map[string]*entry{},
		every: rate.Every(window),
		burst: burst,
		ttl:   10 * time.Minute,
		now:   time.Now,
	}
}

func (l *userLimiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.lim[key]
	if !ok {
		if len(l.lim) > 1024 {
			l.sweepLocked(now)
		}
		e = &entry{l: rate.NewLimiter(l.every, l.burst)}
		l.lim[key] = e
	}
	e.seen = now
	return e.l.AllowN(now, 1)
}

// sweepLocked tira los limiters que nadie usa hace ttl.
func (l *userLimiter) sweepLocked(now time.Time) {
	for k, e := range l.lim {
		if now.Sub(e.seen) > l.ttl {
			delete(l.lim, k)
		}
	}
}
