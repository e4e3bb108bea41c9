package archivist

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/labstack/gommon/log"

	"github.com/eringen/archivist/catalog"
	"github.com/eringen/archivist/imaging"
	"github.com/eringen/archivist/localcache"
	"github.com/eringen/archivist/remote"
)

// Config holds all configuration for an archive site.
type Config struct {
	Name        string `env:"SITE_NAME" envDefault:"Archive"`
	URL         string `env:"SITE_URL" envDefault:"http://localhost:3000"`
	Description string `env:"SITE_DESCRIPTION"`

	Addr      string `env:"ADDR" envDefault:":3000"`
	CachePath string `env:"CACHE_PATH" envDefault:"data/cache.db"`

	AdminPassword string        `env:"ADMIN_PASSWORD"`
	SessionSecret string        `env:"SESSION_SECRET"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"false"`
	LoginAttempts int           `env:"LOGIN_ATTEMPTS" envDefault:"5"`
	LoginWindow   time.Duration `env:"LOGIN_WINDOW" envDefault:"1m"`

	Catalog catalog.Config `envPrefix:"CATALOG_"`
	Remote  remote.Config  `envPrefix:"REMOTE_"`
	Imaging imaging.Config `envPrefix:"IMAGE_"`
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "Archive"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.CachePath == "" {
		c.CachePath = "data/cache.db"
	}
	if c.LoginAttempts <= 0 {
		c.LoginAttempts = 5
	}
	if c.LoginWindow <= 0 {
		c.LoginWindow = time.Minute
	}
	c.link()
}

// link derives the per-package upload switches from the catalog ones: the
// remote client uploads whenever uploads are on, the pipeline only when
// uploads are not deferred to save time.
func (c *Config) link() {
	c.Remote.UploadImages = c.Catalog.UploadImages
	c.Imaging.Upload = c.Catalog.UploadImages && !c.Catalog.BatchUpload
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("archivist: parse env: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithRemote replaces the remote store and uploader built from Config.Remote.
func WithRemote(store catalog.RemoteStore, uploader catalog.ImageUploader) Option {
	return func(a *App) {
		a.remote = store
		a.uploader = uploader
	}
}

// WithKV keeps the local cache in kv instead of the SQLite file at
// Config.CachePath.
func WithKV(kv localcache.KV) Option {
	return func(a *App) {
		a.kv = kv
	}
}

// WithConverter sets the HEIC/HEIF converter used by the image pipeline.
func WithConverter(c imaging.Converter) Option {
	return func(a *App) {
		a.converter = c
	}
}

// WithLogger replaces the application logger.
func WithLogger(l *log.Logger) Option {
	return func(a *App) {
		a.log = l
	}
}
