package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlines/pkg/config"
	flerrors "github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/host/browser"
	"github.com/matzehuels/flowlines/pkg/pipeline"
	"github.com/matzehuels/flowlines/pkg/render/sink"
	"github.com/matzehuels/flowlines/pkg/scheduler"
)

// watchOpts holds the command-line flags for the watch command.
type watchOpts struct {
	container  string // CSS selector of the container element
	output     string // SVG file rewritten on every publish
	configPath string
	remote     string // DevTools URL of a running Chrome
	headful    bool
	width      int
	height     int
	static     bool
	tui        bool
}

// watchCommand creates the watch command, which drives the scheduler from a
// live page and rewrites an SVG file on every published snapshot.
func (c *CLI) watchCommand() *cobra.Command {
	opts := watchOpts{output: "flowlines.svg"}

	cmd := &cobra.Command{
		Use:   "watch [url]",
		Short: "Follow a live page and rewrite the flow SVG on every change",
		Long: `Watch opens a page in headless Chrome and measures every element that
carries a data-flow-anchor attribute relative to the container selector.
Resizes, DOM mutations and scrolling trigger a recomputation; each
published snapshot is written to the output file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flerrors.ValidateURL(args[0]); err != nil {
				return err
			}
			if err := flerrors.ValidateOutputPath(opts.output); err != nil {
				return err
			}
			return c.runWatch(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.container, "container", "", "CSS selector of the container element (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "SVG file to rewrite on each snapshot")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (TOML), reloaded on change")
	cmd.Flags().StringVar(&opts.remote, "remote", "", "DevTools URL of a running Chrome")
	cmd.Flags().BoolVar(&opts.headful, "headful", false, "show the browser window")
	cmd.Flags().IntVar(&opts.width, "width", 0, "viewport width (0 keeps the browser default)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "viewport height")
	cmd.Flags().BoolVar(&opts.static, "static", false, "omit SVG animation")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "show a live status view")
	_ = cmd.MarkFlagRequired("container")

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, pageURL string, opts watchOpts) error {
	logger := loggerFromContext(ctx)
	if opts.tui {
		logger = log.New(io.Discard)
	}

	provider, err := configProvider(opts.configPath, logger)
	if err != nil {
		return err
	}

	spinner := newSpinner(ctx, "Starting Chrome")
	spinner.Start()
	session, err := browser.Launch(ctx, browser.Options{RemoteURL: opts.remote, Headful: opts.headful, Logger: logger})
	if err != nil {
		spinner.StopWithError("Could not start Chrome")
		return err
	}
	defer session.Close()

	spinner.SetMessage("Opening " + pageURL)
	host, err := session.Open(ctx, pageURL, opts.container)
	if err != nil {
		spinner.StopWithError("Could not open " + pageURL)
		return err
	}
	defer host.Close()
	if opts.width > 0 && opts.height > 0 {
		spinner.SetMessage(fmt.Sprintf("Resizing viewport to %dx%d", opts.width, opts.height))
		if err := host.Resize(ctx, opts.width, opts.height); err != nil {
			spinner.Stop()
			return err
		}
	}
	if opts.tui {
		spinner.Stop()
	} else {
		spinner.StopWithSuccess("Watching " + pageURL)
		printDetail("Writing %s", opts.output)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(host, scheduler.WithConfig(provider), scheduler.WithLogger(logger))
	updates := make(chan *scheduler.Snapshot, 1)
	unsubscribe := sched.Subscribe(func(s *scheduler.Snapshot) { offerLatest(updates, s) })
	defer unsubscribe()
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Close()

	w := snapshotWriter{path: opts.output, config: provider, static: opts.static}

	if !opts.tui {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case snap := <-updates:
				if err := w.write(snap); err != nil {
					logger.Error("write snapshot", "seq", snap.Seq, "err", err)
					continue
				}
				printSnapshot(snap, opts.output)
				snapshotLogger(logger, snap).Debug("wrote snapshot", "path", opts.output)
			}
		}
	}

	p := tea.NewProgram(newWatchModel(pageURL, opts.output, sched), tea.WithContext(ctx))
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-updates:
				p.Send(snapshotMsg{snap: snap, err: w.write(snap)})
			}
		}
	}()
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// offerLatest replaces any unread snapshot in ch with s.
func offerLatest(ch chan *scheduler.Snapshot, s *scheduler.Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// snapshotWriter renders snapshots to an SVG file.
type snapshotWriter struct {
	path   string
	config config.Provider
	static bool
}

func (w snapshotWriter) write(snap *scheduler.Snapshot) error {
	data, err := pipeline.RenderFormat(sink.FromSnapshot(snap), pipeline.FormatSVG, pipeline.RenderOptions{
		Config: w.config.Current(),
		Static: w.static,
	})
	if err != nil {
		return err
	}
	return writeFileAtomic(w.path, data)
}

// writeFileAtomic replaces path so that readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".flowlines-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
