package sheet

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

// ExecPath is where the action endpoint is mounted.
const ExecPath = "/exec"

// filesPath serves the local image folder.
const filesPath = "/files"

// Server is a standalone endpoint process.
type Server struct {
	Echo  *echo.Echo
	table *Table
}

// NewServer opens the table and image folder described by cfg. baseURL is
// the public address of the server, used for local image URLs.
func NewServer(cfg Config, baseURL string, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New("sheet")
	}
	table, err := OpenTable(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("sheet: open table: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger

	var blobs Blobs
	if cfg.S3.Endpoint != "" {
		mb, err := NewMinioBlobs(cfg.S3)
		if err != nil {
			table.Close()
			return nil, fmt.Errorf("sheet: %w", err)
		}
		blobs = mb
	} else {
		blobs = DirBlobs{Dir: cfg.ImageDir, BaseURL: strings.TrimRight(baseURL, "/") + filesPath}
		e.Static(filesPath, cfg.ImageDir)
	}

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("32M"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	NewHandler(table, blobs, cfg.Enabled, logger).Register(e, ExecPath)
	return &Server{Echo: e, table: table}, nil
}

// Close releases the table.
func (s *Server) Close() error {
	return s.table.Close()
}
