package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/craftsearch/pkg/api"
	"github.com/rubiojr/craftsearch/pkg/realtime"
	"github.com/rubiojr/craftsearch/pkg/watch"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the search API and the search-as-you-type WebSocket",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (defaults to server.listen)",
			},
			&cli.BoolFlag{
				Name:  "no-watch",
				Usage: "Do not watch index files for changes",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	mgr, err := openSpaces(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Warnf("failed to close indexes: %v", err)
		}
	}()

	svc := newService(mgr, cfg.SearchSettings())
	hub := realtime.NewHub(0)
	apiServer := api.NewServer(svc, api.Options{
		Manager:  mgr,
		Hub:      hub,
		Debounce: cfg.Server.Debounce.Duration,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.WatchEnabled() && !c.Bool("no-watch") {
		// Every space is watched, including those that failed to open, so a
		// space that becomes readable later is reopened.
		watcher, err := watch.New(mgr.Spaces(), 0, func(ch watch.Change) {
			apiServer.NotifyIndexChanged(ch.SpaceIDs, ch.At)
		})
		if err != nil {
			logger.Warnf("index changes will not be picked up: %v", err)
		} else {
			defer func() {
				if err := watcher.Close(); err != nil {
					logger.Warnf("failed to close index watcher: %v", err)
				}
			}()
			go func() {
				if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warnf("index watcher stopped: %v", err)
				}
			}()
		}
	}

	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)

	addr := c.String("listen")
	if addr == "" {
		addr = cfg.Server.Listen
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           api.CorsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Serving %d of %d spaces on http://%s", len(mgr.Indexes()), len(mgr.Spaces()), addr)
		logger.Infof("  GET /api/search?q=     - Search blocks")
		logger.Infof("  GET /api/documents?q=  - Search grouped by document")
		logger.Infof("  GET /api/spaces        - List spaces")
		logger.Infof("  GET /api/search/ws     - Search as you type")
		logger.Infof("  GET /health            - Health check")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Infof("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}
