package localcache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/eringen/archivist/catalog"
)

const (
	// ObjectsKey holds the cached object list.
	ObjectsKey = "archive.objects.v1"
	// LocalImagesKey holds the id -> pending images map.
	LocalImagesKey = "archive.localImages.v1"
)

// Option configures the caches.
type Option func(*options)

type options struct {
	log *log.Logger
	now func() time.Time
}

// WithLogger sets the logger used to report corrupt blobs.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = log.New("localcache")
		o.log.SetOutput(io.Discard)
	}
	return o
}

// ObjectCache is the persisted snapshot of the object list.
type ObjectCache struct {
	kv    KV
	embed bool
	opts  options
}

// NewObjectCache returns a cache over kv. With embed off, local images are
// dropped on write so embedded payloads never fill the store.
func NewObjectCache(kv KV, embed bool, opts ...Option) *ObjectCache {
	return &ObjectCache{kv: kv, embed: embed, opts: buildOptions(opts)}
}

// Read returns the stored entry, or nil when it is missing or unreadable.
func (c *ObjectCache) Read(ctx context.Context) *catalog.CacheEntry {
	raw, ok, err := c.kv.Get(ctx, ObjectsKey)
	if err != nil {
		c.opts.log.Warnf("read object cache: %v", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var entry catalog.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.opts.log.Warnf("discarding corrupt object cache: %v", err)
		return nil
	}
	if entry.Objects == nil {
		entry.Objects = []catalog.Object{}
	}
	return &entry
}

// Write stores objects stamped with the current time.
func (c *ObjectCache) Write(ctx context.Context, objects []catalog.Object) error {
	if !c.embed {
		objects = catalog.StripLocalImages(objects)
	}
	if objects == nil {
		objects = []catalog.Object{}
	}
	b, err := json.Marshal(catalog.CacheEntry{
		Objects:   objects,
		UpdatedAt: c.opts.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode object cache: %w", err)
	}
	return c.kv.Set(ctx, ObjectsKey, string(b))
}

// PendingImages is the side-cache of local images keyed by object id.
type PendingImages struct {
	mu   sync.Mutex
	kv   KV
	opts options
}

// NewPendingImages returns a side-cache over kv.
func NewPendingImages(kv KV, opts ...Option) *PendingImages {
	return &PendingImages{kv: kv, opts: buildOptions(opts)}
}

// Read returns the whole map; missing or corrupt data reads as empty.
func (p *PendingImages) Read(ctx context.Context) map[string][]catalog.Image {
	raw, ok, err := p.kv.Get(ctx, LocalImagesKey)
	if err != nil {
		p.opts.log.Warnf("read local images: %v", err)
		return map[string][]catalog.Image{}
	}
	if !ok || raw == "" {
		return map[string][]catalog.Image{}
	}
	var m map[string][]catalog.Image
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		p.opts.log.Warnf("discarding corrupt local images: %v", err)
		return map[string][]catalog.Image{}
	}
	if m == nil {
		m = map[string][]catalog.Image{}
	}
	for id, images := range m {
		for i := range images {
			images[i].State = catalog.ImageLocal
		}
		m[id] = images
	}
	return m
}

// Write replaces the whole map. Empty entries are dropped.
func (p *PendingImages) Write(ctx context.Context, m map[string][]catalog.Image) error {
	clean := make(map[string][]catalog.Image, len(m))
	for id, images := range m {
		if len(images) > 0 {
			clean[id] = images
		}
	}
	if len(clean) == 0 {
		return p.kv.Delete(ctx, LocalImagesKey)
	}
	b, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("encode local images: %w", err)
	}
	return p.kv.Set(ctx, LocalImagesKey, string(b))
}

// Put stores images under id, replacing what was there.
func (p *PendingImages) Put(ctx context.Context, id string, images []catalog.Image) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.Read(ctx)
	m[id] = append([]catalog.Image(nil), images...)
	return p.Write(ctx, m)
}

// Remove drops the entry for id.
func (p *PendingImages) Remove(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.Read(ctx)
	if _, ok := m[id]; !ok {
		return nil
	}
	delete(m, id)
	return p.Write(ctx, m)
}

// Merge attaches the side-cached images to objects.
func (p *PendingImages) Merge(ctx context.Context, objects []catalog.Object) []catalog.Object {
	return catalog.MergeLocalImages(objects, p.Read(ctx))
}
