package archivist

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter rate-limits failed login attempts per IP address. Each IP
// gets a token bucket of max attempts that refills over window.
type LoginLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     int
	window  time.Duration
	now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter creates a LoginLimiter that allows max attempts per window.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		buckets: make(map[string]*bucket),
		max:     max,
		window:  window,
		now:     time.Now,
	}
}

func (l *LoginLimiter) get(ip string, now time.Time) *bucket {
	b, ok := l.buckets[ip]
	if !ok {
		every := rate.Every(l.window / time.Duration(max(l.max, 1)))
		b = &bucket{lim: rate.NewLimiter(every, l.max)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b
}

// Allow records an attempt and reports whether it was within the limit.
func (l *LoginLimiter) Allow(ip string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(ip, now).lim.AllowN(now, 1)
}

// Check reports whether ip may attempt a login. It does not record one.
func (l *LoginLimiter) Check(ip string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(ip, now).lim.TokensAt(now) >= 1
}

// Record registers a failed login attempt for ip.
func (l *LoginLimiter) Record(ip string) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(ip, now).lim.AllowN(now, 1)
	l.sweep(now)
}

// Reset forgets ip, after a successful login.
func (l *LoginLimiter) Reset(ip string) {
	l.mu.Lock()
	delete(l.buckets, ip)
	l.mu.Unlock()
}

// sweep drops buckets idle for longer than a window; they are full again.
func (l *LoginLimiter) sweep(now time.Time) {
	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.window {
			delete(l.buckets, ip)
		}
	}
}
