package catalog

import (
	"strconv"
	"sync"
	"time"
)

var defaultIDs idGenerator

// NewID returns a millisecond timestamp id that is strictly greater than any
// id previously issued by this process.
func NewID(now time.Time) string {
	return defaultIDs.next(now)
}

type idGenerator struct {
	mu   sync.Mutex
	last int64
}

func (g *idGenerator) next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := now.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}
