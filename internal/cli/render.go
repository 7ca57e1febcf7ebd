package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlines/pkg/host/layoutfile"
	"github.com/matzehuels/flowlines/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output     string   // output file (single format) or base path (multiple)
	formats    []string // output formats: "svg", "png", "json"
	configPath string   // TOML configuration file
	static     bool     // SVG without animation
	scale      float64  // PNG scale factor
	background string   // PNG background color
	refresh    bool     // bypass cache reads
	cache      cacheOpts
}

// renderCommand creates the render command, which computes the geometry of
// a layout document once and writes the requested artifacts.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	opts := renderOpts{scale: pipeline.DefaultScale}

	cmd := &cobra.Command{
		Use:   "render [layout]",
		Short: "Render flow paths for a layout document",
		Long: `Render computes the connective paths for a TOML or JSON layout document
and writes them as SVG, PNG or JSON. Geometry and artifacts are cached by
layout and configuration, so rendering an unchanged layout is instant.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), png, json (comma-separated)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (TOML)")
	cmd.Flags().BoolVar(&opts.static, "static", false, "omit SVG animation")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")
	cmd.Flags().StringVar(&opts.background, "background", "", "PNG background color (hex)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even when cached")
	cmd.Flags().BoolVar(&opts.cache.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&opts.cache.redis, "redis", "", "Redis address for a shared cache")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, path string, opts renderOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	doc, err := layoutfile.Load(path)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.cache)
	if err != nil {
		return err
	}
	defer runner.Close()

	result, err := runner.Execute(ctx, doc.Host(), pipeline.Options{
		Config:     cfg,
		Formats:    opts.formats,
		Scale:      opts.scale,
		Static:     opts.static,
		Background: opts.background,
		Refresh:    opts.refresh,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	paths, err := writeArtifacts(path, opts.output, opts.formats, result.Artifacts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Rendered %d artifacts", len(paths)))

	printSuccess("Rendered %s", filepath.Base(path))
	printGeometry(result.Geometry, result.Stats.AnchorCount, result.CacheInfo.ComputeHit)
	for _, p := range paths {
		printFile(p)
	}
	printNextStep("Serve it live", "flowlines serve "+path)
	return nil
}

// writeArtifacts writes one file per format and returns the paths written.
// With a single format, output names the file; otherwise output is a base
// path that receives the format's extension. An empty output derives the
// base from the layout path.
func writeArtifacts(layoutPath, output string, formats []string, artifacts map[string][]byte) ([]string, error) {
	base := output
	if base == "" || len(formats) > 1 {
		if base == "" {
			base = layoutPath
		}
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}

	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		out := base + "." + format
		if output != "" && len(formats) == 1 {
			out = output
		}
		if err := os.WriteFile(out, artifacts[format], 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", out, err)
		}
		paths = append(paths, out)
	}
	return paths, nil
}

// parseFormats parses the --format flag. An empty flag means SVG only.
func parseFormats(s string) []string {
	formats := pipeline.ParseFormats(s)
	if len(formats) == 0 {
		return []string{pipeline.FormatSVG}
	}
	return formats
}
