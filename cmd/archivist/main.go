package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/labstack/gommon/log"

	"github.com/eringen/archivist"
	"github.com/eringen/archivist/sheet"
	"github.com/eringen/archivist/views"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe()
	case "sheet":
		err = runSheet()
	case "version":
		fmt.Printf("archivist %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := archivist.LoadConfig()
	if err != nil {
		return err
	}
	app := archivist.New(cfg, views.Funcs())
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Init(ctx); err != nil {
		return err
	}
	return serve(ctx, app.Echo.Start, app.Echo.Shutdown, cfg.Addr)
}

type sheetConfig struct {
	Addr    string       `env:"SHEET_ADDR" envDefault:":3001"`
	BaseURL string       `env:"SHEET_URL" envDefault:"http://localhost:3001"`
	Sheet   sheet.Config `envPrefix:"SHEET_"`
}

func runSheet() error {
	var cfg sheetConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	srv, err := sheet.NewServer(cfg.Sheet, cfg.BaseURL, log.New("sheet"))
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, srv.Echo.Start, srv.Echo.Shutdown, cfg.Addr)
}

// serve runs start until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, start func(string) error, shutdown func(context.Context) error, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- start(addr) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return shutdown(sctx)
}

func printUsage() {
	fmt.Println(`archivist - a museum archive catalogue built with Go, Echo, and templ

Usage:
  archivist <command>

Commands:
  serve         Run the catalogue site (configured from the environment)
  sheet         Run the self-hosted spreadsheet endpoint
  version       Print the archivist version
  help          Show this help message

Environment:
  ADMIN_PASSWORD, SESSION_SECRET   required by serve
  REMOTE_ENDPOINT                  spreadsheet endpoint URL (samples when unset)
  CATALOG_UPLOAD_IMAGES            upload photos to the endpoint's image folder
  CATALOG_EMBED_IMAGES             keep photos inline in the stored rows
  SHEET_S3_ENDPOINT                store sheet images in an S3 bucket`)
}
