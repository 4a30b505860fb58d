package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/usewebget/webget/client"
	"github.com/usewebget/webget/render"
	"github.com/usewebget/webget/schema"
)

var (
	updateFilter  string
	updateWorkers int
	updateHeaded  bool
	updateDiff    bool
)

var updateCmd = &cobra.Command{
	Use:   "update [dir]",
	Short: "Render every descriptor under dir and sync its screenshot",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateFilter, "filter", "", "Only render outputs whose path contains this substring")
	updateCmd.Flags().IntVar(&updateWorkers, "workers", 0, "Concurrent renders (default from config)")
	updateCmd.Flags().BoolVar(&updateHeaded, "headed", false, "Render in a visible browser window")
	updateCmd.Flags().BoolVar(&updateDiff, "diff", false, "Write a visual diff image next to changed baselines")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	outputs, err := discover(dir, updateFilter)
	if err != nil {
		return err
	}
	if len(outputs) == 0 {
		fmt.Println("no descriptors found")
		return nil
	}

	ctx := cmd.Context()
	c := client.New(cfg.ServerURL())
	if err := ensureServer(ctx, c); err != nil {
		return err
	}

	workers := updateWorkers
	if workers <= 0 {
		workers = cfg.Workers
	}

	var (
		mu     sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, output := range outputs {
		output := output
		g.Go(func() error {
			out := renderOne(gctx, c, output)
			mu.Lock()
			printOutcome(output, out)
			if out.Status == render.StatusError {
				failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d renders failed", failed, len(outputs))
	}
	return nil
}

func renderOne(ctx context.Context, c *client.Client, output string) render.Outcome {
	asset, err := schema.FromFile(output, updateHeaded, updateDiff)
	if err != nil {
		return render.Outcome{Status: render.StatusError, Error: err.Error()}
	}
	out, err := c.Screenshot(ctx, asset)
	if err != nil {
		return render.Outcome{Status: render.StatusError, Error: err.Error()}
	}
	return out
}

// discover walks dir for descriptor files and returns the output paths
// they describe, sorted. A descriptor is <output>.json where output ends
// in a known image extension.
func discover(dir, filter string) ([]string, error) {
	var outputs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Descriptors never live inside dotted directories.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".json") {
			return nil
		}
		output := strings.TrimSuffix(path, ".json")
		if _, err := schema.TypeFromOutput(output); err != nil {
			return nil
		}
		if filter != "" && !strings.Contains(output, filter) {
			return nil
		}
		outputs = append(outputs, output)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover descriptors in %s: %w", dir, err)
	}
	sort.Strings(outputs)
	return outputs, nil
}

// ensureServer checks for a running server and spawns one in the
// background when none answers.
func ensureServer(ctx context.Context, c *client.Client) error {
	if err := c.Health(ctx); err == nil {
		return nil
	} else if !errors.Is(err, client.ErrServerUnreachable) {
		return err
	}

	if err := spawnServer(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := c.WaitHealthy(waitCtx); err != nil {
		return fmt.Errorf("server did not become healthy: %w", err)
	}
	return nil
}

// spawnServer re-executes this binary as `webget server`, detached.
func spawnServer() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	proc := exec.Command(exe, "--config", cfgPath, "server")
	proc.Stdout = nil
	proc.Stderr = nil
	if err := proc.Start(); err != nil {
		return err
	}
	return proc.Process.Release()
}

var (
	statusCreated = color.New(color.FgGreen)
	statusUpdated = color.New(color.FgYellow)
	statusMatched = color.New(color.Faint)
	statusError   = color.New(color.FgRed)
)

func printOutcome(output string, out render.Outcome) {
	switch out.Status {
	case render.StatusCreated:
		statusCreated.Printf("✨ created  %s\n", output)
	case render.StatusUpdated:
		statusUpdated.Printf("🔄 updated  %s (%s)\n", output, out.Error)
	case render.StatusMatched:
		statusMatched.Printf("   matched  %s\n", output)
	default:
		statusError.Printf("❌ error    %s: %s\n", output, out.Error)
	}
}
