// Package archivist is a museum archive cataloguing site built with Go, Echo
// and templ. Objects live in a remote spreadsheet store, are cached locally
// and edited through an admin form that ingests photos.
//
// Callers provide their own templ templates via the ViewFuncs struct;
// archivist handles the handler logic, middleware and storage.
package archivist

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/eringen/archivist/catalog"
	"github.com/eringen/archivist/imaging"
	"github.com/eringen/archivist/localcache"
	"github.com/eringen/archivist/remote"
)

// ViewFuncs holds the templ components the app calls when rendering pages.
type ViewFuncs struct {
	Browse             func(p BrowsePage) templ.Component
	Object             func(p ObjectPage) templ.Component
	AdminLogin         func(showError bool, csrfToken string) templ.Component
	AdminDashboard     func(p DashboardPage) templ.Component
	AdminForm          func(p FormPage) templ.Component
	AdminDeleteConfirm func(obj catalog.Object, csrfToken string) templ.Component
	NotFound           func() templ.Component
	ServerError        func() templ.Component
}

// App wires together the catalog service, caches, image pipeline, handlers
// and middleware.
type App struct {
	Config   Config
	Echo     *echo.Echo
	Catalog  *catalog.Service
	Pipeline *imaging.Pipeline
	Views    ViewFuncs

	remote       catalog.RemoteStore
	uploader     catalog.ImageUploader
	converter    imaging.Converter
	kv           localcache.KV
	closeKV      func() error
	loginLimiter *LoginLimiter
	log          *log.Logger
	customRoutes []func(*App)
	staticDir    string
}

// New creates an App with the given configuration and view functions.
func New(cfg Config, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		log:       log.New("archivist"),
		staticDir: "public",
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Init validates the configuration, opens the local cache, loads the object
// list and registers middleware and routes. Start calls it.
func (a *App) Init(ctx context.Context) error {
	if a.Config.AdminPassword == "" {
		return errors.New("archivist: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return errors.New("archivist: SessionSecret is required")
	}

	if a.kv == nil {
		kv, err := localcache.OpenSQLite(a.Config.CachePath)
		if err != nil {
			return fmt.Errorf("archivist: open cache: %w", err)
		}
		a.kv = kv
		a.closeKV = kv.Close
	}

	if a.remote == nil {
		client := remote.New(a.Config.Remote, remote.WithLogger(log.New("remote")))
		a.remote = client
		a.uploader = client
		if !a.Config.Remote.Configured() {
			a.log.Warnf("no remote endpoint configured, serving sample objects")
		}
	}

	pipelineOpts := []imaging.Option{imaging.WithLogger(log.New("imaging"))}
	serviceOpts := []catalog.ServiceOption{catalog.WithLogger(log.New("catalog"))}
	if a.uploader != nil {
		pipelineOpts = append(pipelineOpts, imaging.WithUploader(a.uploader))
		serviceOpts = append(serviceOpts, catalog.WithUploader(a.uploader))
	}
	if a.converter != nil {
		pipelineOpts = append(pipelineOpts, imaging.WithConverter(a.converter))
	}
	a.Pipeline = imaging.New(a.Config.Imaging, pipelineOpts...)

	cacheOpts := []localcache.Option{localcache.WithLogger(log.New("localcache"))}
	a.Catalog = catalog.NewService(
		a.Config.Catalog,
		a.remote,
		localcache.NewObjectCache(a.kv, a.Config.Catalog.EmbedImages, cacheOpts...),
		localcache.NewPendingImages(a.kv, cacheOpts...),
		serviceOpts...,
	)
	snap, err := a.Catalog.Load(ctx)
	if err != nil {
		return fmt.Errorf("archivist: load objects: %w", err)
	}
	a.log.Infof("loaded %d objects from %s", len(snap.Objects), snap.Source)

	a.loginLimiter = NewLoginLimiter(a.Config.LoginAttempts, a.Config.LoginWindow)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start initializes the app and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(context.Background()); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)

	// Public routes
	e.GET("/", a.handleBrowse)
	e.GET("/objects/:id/", a.handleObject)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/api/objects", a.handleAPIObjects)
	e.GET("/api/objects/:id", a.handleAPIObject)

	// Admin routes
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.POST("/admin/refresh/", a.handleAdminRefresh)

	g := e.Group("/admin/objects", a.requireAdmin)
	g.GET("/new/", a.handleAdminNew)
	g.POST("/", a.handleAdminSave)
	g.GET("/:id/", a.handleAdminEdit)
	g.GET("/:id/delete/", a.handleAdminDeleteConfirm)
	g.POST("/:id/delete/", a.handleAdminDelete)
	g.POST("/:id/images/", a.handleImageAdd)
	g.POST("/:id/images/:idx/primary/", a.handleImagePrimary)
	g.POST("/:id/images/:idx/remove/", a.handleImageRemove)
}

// Close releases the local cache. Call it when the app is shutting down.
func (a *App) Close() error {
	if a.closeKV != nil {
		return a.closeKV()
	}
	return nil
}
