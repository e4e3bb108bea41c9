package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"golang.org/x/sync/singleflight"
)

// RemoteStore is the spreadsheet-backed store. Implementations return
// ErrFallback-wrapped errors together with fallback data when they degrade.
type RemoteStore interface {
	FetchAll(ctx context.Context) ([]Object, error)
	Create(ctx context.Context, obj Object) (Object, error)
	Update(ctx context.Context, obj Object) (Object, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ImageUpload is an encoded image handed to an ImageUploader.
type ImageUpload struct {
	Filename string
	MimeType string
	Data     []byte
}

// UploadedImage is the remote store's answer to an upload.
type UploadedImage struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// ImageUploader promotes image bytes to the remote store.
type ImageUploader interface {
	UploadImage(ctx context.Context, up ImageUpload) (UploadedImage, error)
}

// CacheEntry is the persisted snapshot of the object list.
type CacheEntry struct {
	Objects   []Object `json:"objects"`
	UpdatedAt int64    `json:"updatedAt"` // epoch ms
}

// Fresh reports whether the entry is younger than ttl.
func (e *CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	if e == nil {
		return false
	}
	return now.Sub(time.UnixMilli(e.UpdatedAt)) < ttl
}

// ObjectCache persists the last known object list. Read returns nil when
// nothing usable is stored.
type ObjectCache interface {
	Read(ctx context.Context) *CacheEntry
	Write(ctx context.Context, objects []Object) error
}

// LocalImageStore is the side-cache of images withheld from the remote store.
type LocalImageStore interface {
	Read(ctx context.Context) map[string][]Image
	Put(ctx context.Context, id string, images []Image) error
	Remove(ctx context.Context, id string) error
}

// Config holds the synchronization switches.
type Config struct {
	// UploadImages enables promoting local images through the uploader.
	UploadImages bool `env:"UPLOAD_IMAGES" envDefault:"false"`
	// EmbedImages sends embedded local images to the remote store as is.
	// When off, local images are stripped from remote writes and from the cache.
	EmbedImages bool `env:"EMBED_IMAGES" envDefault:"false"`
	// BatchUpload retries pending local images on every save.
	BatchUpload    bool          `env:"BATCH_UPLOAD" envDefault:"true"`
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	RefreshTimeout time.Duration `env:"REFRESH_TIMEOUT" envDefault:"30s"`
}

func (c *Config) setDefaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.RefreshTimeout == 0 {
		c.RefreshTimeout = 30 * time.Second
	}
}

// Source tells where the current object list came from.
type Source int

const (
	SourceNone Source = iota
	SourceCache
	SourceRemote
	SourceSample
)

func (s Source) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceCache:
		return "cache"
	case SourceRemote:
		return "remote"
	case SourceSample:
		return "sample"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// Snapshot is the result of Load.
type Snapshot struct {
	Objects []Object
	Source  Source
	Fresh   bool
	// Refreshed is closed once the reconciling fetch has finished.
	Refreshed <-chan struct{}
}

// SaveResult describes a completed save. Warnings carry non-fatal problems:
// per-image upload failures and an unconfirmed remote write.
type SaveResult struct {
	Object    Object
	Created   bool
	Persisted bool
	Warnings  []error
}

// DeleteResult describes a completed delete.
type DeleteResult struct {
	ID              string
	Removed         bool
	RemoteConfirmed bool
}

// Service keeps the in-memory object list, the local cache, the image
// side-cache and the remote store consistent. Saves and deletes run one at a
// time; the last writer wins.
type Service struct {
	cfg      Config
	remote   RemoteStore
	uploader ImageUploader
	cache    ObjectCache
	pending  LocalImageStore
	log      *log.Logger
	now      func() time.Time

	writeMu sync.Mutex

	mu          sync.RWMutex
	objects     []Object
	source      Source
	refreshedAt time.Time
	// writes counts saves and deletes applied to objects.
	writes      uint64

	group singleflight.Group
}

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithUploader sets the uploader used for batch image promotion.
func WithUploader(u ImageUploader) ServiceOption {
	return func(s *Service) { s.uploader = u }
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires a Service. remote, cache and pending are required.
func NewService(cfg Config, remote RemoteStore, cache ObjectCache, pending LocalImageStore, opts ...ServiceOption) *Service {
	cfg.setDefaults()
	s := &Service{
		cfg:     cfg,
		remote:  remote,
		cache:   cache,
		pending: pending,
		log:     log.New("catalog"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the switches the service runs with.
func (s *Service) Config() Config { return s.cfg }

// Load shows the cached list right away when one exists and reconciles with
// the remote store in the background. Without a cache it fetches inline.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	if entry := s.cache.Read(ctx); entry != nil {
		merged := MergeLocalImages(entry.Objects, s.pending.Read(ctx))
		s.mu.Lock()
		s.objects = merged
		s.source = SourceCache
		s.refreshedAt = time.UnixMilli(entry.UpdatedAt)
		s.mu.Unlock()
		return Snapshot{
			Objects:   cloneObjects(merged),
			Source:    SourceCache,
			Fresh:     entry.Fresh(s.now(), s.cfg.CacheTTL),
			Refreshed: s.refreshAsync(ctx),
		}, nil
	}

	err := s.Refresh(ctx)
	if err != nil && !errors.Is(err, ErrFallback) {
		return Snapshot{}, err
	}
	done := make(chan struct{})
	close(done)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Objects:   cloneObjects(s.objects),
		Source:    s.source,
		Fresh:     s.source == SourceRemote,
		Refreshed: done,
	}, nil
}

// Refresh fetches the remote list, merges the side-cache into it and
// overwrites the cache. Concurrent calls share one fetch. A degraded fetch
// only fills an empty list and never touches the cache.
func (s *Service) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Service) refresh(ctx context.Context) error {
	s.mu.RLock()
	startWrites := s.writes
	s.mu.RUnlock()

	fetched, err := s.remote.FetchAll(ctx)
	if err != nil {
		s.mu.Lock()
		s.refreshedAt = s.now()
		if errors.Is(err, ErrFallback) && s.source == SourceNone {
			s.objects = MergeLocalImages(fetched, s.pending.Read(ctx))
			s.source = SourceSample
		}
		s.mu.Unlock()
		s.log.Warnf("fetch objects: %v", err)
		return err
	}

	merged := MergeLocalImages(fetched, s.pending.Read(ctx))
	s.mu.Lock()
	if s.writes != startWrites {
		// A save or delete landed while fetching; the list may predate it.
		// refreshedAt stays put so the next read fetches again.
		s.mu.Unlock()
		s.log.Debugf("discarding refresh overtaken by a local write")
		return nil
	}
	s.objects = merged
	s.source = SourceRemote
	s.refreshedAt = s.now()
	s.mu.Unlock()

	if err := s.cache.Write(ctx, merged); err != nil {
		s.log.Warnf("write object cache: %v", err)
	}
	s.log.Debugf("refreshed %d objects", len(merged))
	return nil
}

// refreshAsync starts a refresh that outlives the caller's request.
func (s *Service) refreshAsync(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		rctx, cancel := context.WithTimeout(bg, s.cfg.RefreshTimeout)
		defer cancel()
		_ = s.Refresh(rctx)
	}()
	return done
}

// Current returns the in-memory list and starts a background refresh when
// the last one is older than the cache TTL.
func (s *Service) Current(ctx context.Context) []Object {
	s.mu.RLock()
	objects := cloneObjects(s.objects)
	stale := s.source == SourceNone || s.now().Sub(s.refreshedAt) >= s.cfg.CacheTTL
	s.mu.RUnlock()
	if stale {
		s.refreshAsync(ctx)
	}
	return objects
}

// Source reports where the in-memory list came from.
func (s *Service) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Get returns the object with id from the in-memory list.
func (s *Service) Get(id string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.objects {
		if o.ID == id {
			return o.Clone(), nil
		}
	}
	return Object{}, ErrNotFound
}

// Save validates obj, promotes local images when batch upload is on, writes
// the remote copy and then updates the list, the cache and the side-cache.
func (s *Service) Save(ctx context.Context, obj Object) (SaveResult, error) {
	obj = obj.Clone()
	obj.Title = strings.TrimSpace(obj.Title)
	if obj.Title == "" {
		return SaveResult{}, ErrTitleRequired
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now().UTC()
	existing := obj.ID != "" && s.has(obj.ID)
	if obj.ID == "" {
		obj.ID = NewID(now)
	}
	if obj.CreatedAt == "" {
		obj.CreatedAt = now.Format(time.RFC3339)
	}
	obj.UpdatedAt = now.Format(time.RFC3339)
	obj.Images = NormalizePrimary(obj.Images)

	var warnings []error
	if s.cfg.BatchUpload && s.cfg.UploadImages && s.uploader != nil {
		obj.Images, warnings = s.uploadLocal(ctx, obj)
	}

	payload := obj.Clone()
	if s.cfg.EmbedImages {
		// Embedded images are stored remotely as they are.
		for i := range payload.Images {
			payload.Images[i].State = ImageRemote
		}
	} else {
		payload.Images = RemoteImages(payload.Images)
	}

	var saved Object
	var err error
	if existing {
		saved, err = s.remote.Update(ctx, payload)
	} else {
		saved, err = s.remote.Create(ctx, payload)
	}
	persisted := true
	if err != nil {
		if !errors.Is(err, ErrFallback) {
			return SaveResult{}, fmt.Errorf("save object %s: %w", obj.ID, err)
		}
		persisted = false
		warnings = append(warnings, err)
		s.log.Warnf("save object %s kept locally: %v", obj.ID, err)
	}

	full := obj
	if saved.ID != "" {
		full.ID = saved.ID
	}
	if saved.CreatedAt != "" {
		full.CreatedAt = saved.CreatedAt
	}
	if saved.UpdatedAt != "" {
		full.UpdatedAt = saved.UpdatedAt
	}
	if persisted && s.cfg.EmbedImages {
		for i := range full.Images {
			full.Images[i].State = ImageRemote
		}
	}

	list := s.upsert(full)
	if err := s.cache.Write(ctx, list); err != nil {
		s.log.Warnf("write object cache: %v", err)
	}
	if local := LocalImages(full.Images); len(local) > 0 {
		if err := s.pending.Put(ctx, full.ID, local); err != nil {
			s.log.Warnf("write local images for %s: %v", full.ID, err)
		}
	} else if err := s.pending.Remove(ctx, full.ID); err != nil {
		s.log.Warnf("remove local images for %s: %v", full.ID, err)
	}

	return SaveResult{
		Object:    full.Clone(),
		Created:   !existing,
		Persisted: persisted,
		Warnings:  warnings,
	}, nil
}

// uploadLocal promotes local images one at a time. Failures stay local and
// are reported per image; a disabled uploader ends the batch silently.
func (s *Service) uploadLocal(ctx context.Context, obj Object) ([]Image, []error) {
	images := append([]Image(nil), obj.Images...)
	var warnings []error
	for i, img := range images {
		switch img.State {
		case ImageRemote:
			continue
		case ImageLocal:
		}
		mimeType, data, err := DecodeDataURI(img.URL)
		if err != nil {
			warnings = append(warnings, &ImageUploadError{Index: i, Err: err})
			continue
		}
		res, err := s.uploader.UploadImage(ctx, ImageUpload{
			Filename: fmt.Sprintf("%s-%d%s", obj.ID, i+1, extensionFor(mimeType)),
			MimeType: mimeType,
			Data:     data,
		})
		if errors.Is(err, ErrUploadDisabled) {
			break
		}
		if err != nil {
			warnings = append(warnings, &ImageUploadError{Index: i, Err: err})
			continue
		}
		images[i].URL = res.URL
		images[i].State = ImageRemote
	}
	return images, warnings
}

// Delete removes id remotely on a best-effort basis and always drops it from
// the list, the cache and the side-cache.
func (s *Service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	if id == "" {
		return DeleteResult{}, ErrNotFound
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	confirmed, err := s.remote.Delete(ctx, id)
	if err != nil {
		s.log.Warnf("delete object %s remotely: %v", id, err)
	}

	removed, list := s.remove(id)
	if err := s.cache.Write(ctx, list); err != nil {
		s.log.Warnf("write object cache: %v", err)
	}
	if err := s.pending.Remove(ctx, id); err != nil {
		s.log.Warnf("remove local images for %s: %v", id, err)
	}
	return DeleteResult{ID: id, Removed: removed, RemoteConfirmed: confirmed}, nil
}

func (s *Service) has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.objects {
		if o.ID == id {
			return true
		}
	}
	return false
}

func (s *Service) upsert(obj Object) []Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	for i := range s.objects {
		if s.objects[i].ID == obj.ID {
			s.objects[i] = obj.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		s.objects = append(s.objects, obj.Clone())
	}
	s.writes++
	if s.source == SourceNone {
		s.source = SourceCache
	}
	return cloneObjects(s.objects)
}

func (s *Service) remove(id string) (bool, []Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.objects[:0:0]
	removed := false
	for _, o := range s.objects {
		if o.ID == id {
			removed = true
			continue
		}
		kept = append(kept, o)
	}
	s.objects = kept
	s.writes++
	return removed, cloneObjects(kept)
}

func cloneObjects(objects []Object) []Object {
	out := make([]Object, len(objects))
	for i, o := range objects {
		out[i] = o.Clone()
	}
	return out
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}

// DiscardLogger returns a logger that drops everything, for tests and tools.
func DiscardLogger(prefix string) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(io.Discard)
	return l
}
