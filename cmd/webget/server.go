package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/usewebget/webget/browser"
	"github.com/usewebget/webget/client"
	"github.com/usewebget/webget/history"
	"github.com/usewebget/webget/render"
	"github.com/usewebget/webget/server"
	"github.com/usewebget/webget/store"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the render server in the foreground",
	RunE:  runServer,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the render server in the background",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running render server",
	RunE:  runStop,
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := browser.NewManager(browser.Config{
		ActionTimeout: cfg.ActionTimeout,
		NavTimeout:    cfg.NavTimeout,
		Logger:        logger,
	})
	defer mgr.Shutdown()

	st := store.NewLocal(cfg.DataDir)

	hist, err := history.Open(filepath.Join(cfg.DataDir, "webget.db"), logger)
	if err != nil {
		return err
	}
	defer hist.Close()

	pipeline := render.New(render.Config{
		Browser:   mgr,
		Store:     st,
		History:   hist,
		ServerURL: cfg.ServerURL(),
		Logger:    logger,
	})

	srv := server.New(server.Config{
		Addr:         cfg.Addr,
		Renderer:     pipeline,
		Store:        st,
		History:      hist,
		TemplatesDir: cfg.TemplatesDir,
		Workers:      cfg.Workers,
		Logger:       logger,
	})
	return srv.Run(ctx)
}

func runStart(cmd *cobra.Command, args []string) error {
	c := client.New(cfg.ServerURL())
	if err := c.Health(cmd.Context()); err == nil {
		fmt.Println("server already running")
		return nil
	}

	if err := spawnServer(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	if err := c.WaitHealthy(ctx); err != nil {
		return fmt.Errorf("server did not become healthy: %w", err)
	}
	fmt.Printf("server running on %s\n", cfg.ServerURL())
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	err := client.New(cfg.ServerURL()).Stop(cmd.Context())
	if errors.Is(err, client.ErrServerUnreachable) {
		fmt.Println("no server running")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println("server stopped")
	return nil
}
