package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlines/pkg/anchor"
	"github.com/matzehuels/flowlines/pkg/config"
	flerrors "github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/geom"
	"github.com/matzehuels/flowlines/pkg/host/layoutfile"
	"github.com/matzehuels/flowlines/pkg/observability"
	"github.com/matzehuels/flowlines/pkg/observability/prom"
	"github.com/matzehuels/flowlines/pkg/pipeline"
	"github.com/matzehuels/flowlines/pkg/render/sink"
	"github.com/matzehuels/flowlines/pkg/scheduler"
)

const (
	defaultServeAddr = "127.0.0.1:8080"
	shutdownTimeout  = 5 * time.Second
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr       string
	configPath string
	watch      bool // follow edits to the layout document
	cache      cacheOpts
}

// serveCommand creates the serve command, which keeps a scheduler running
// over a layout document and exposes its snapshots over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{addr: defaultServeAddr, watch: true}

	cmd := &cobra.Command{
		Use:   "serve [layout]",
		Short: "Serve live flow snapshots over HTTP",
		Long: `Serve loads a layout document into a live host and recomputes the flow
paths whenever anchors move, either through the HTTP API or by editing the
document on disk.

Endpoints:
  GET    /snapshot          latest snapshot as JSON
  GET    /snapshot.svg      latest snapshot as SVG
  GET    /snapshot.png      latest snapshot as PNG
  GET    /state             scheduler state and counters
  GET    /layout            current layout document
  POST   /trigger           request a recomputation
  PUT    /anchors/{name}    add or move an anchor element
  DELETE /anchors/{name}    remove an anchor element
  GET    /metrics           Prometheus metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (TOML), reloaded on change")
	cmd.Flags().BoolVar(&opts.watch, "watch", opts.watch, "reload the layout document when it changes")
	cmd.Flags().BoolVar(&opts.cache.noCache, "no-cache", false, "disable artifact caching")
	cmd.Flags().StringVar(&opts.cache.redis, "redis", "", "Redis address for a shared artifact cache")
	cmd.Flags().StringVar(&opts.cache.prefix, "cache-prefix", "", "key namespace within a shared cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, path string, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	doc, err := layoutfile.Load(path)
	if err != nil {
		return err
	}
	provider, err := configProvider(opts.configPath, logger)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, opts.cache)
	if err != nil {
		return err
	}
	defer runner.Close()

	reg := prometheus.NewRegistry()
	hooks := prom.New(reg)
	hooks.Install()

	host := doc.Host()
	sched := scheduler.New(host,
		scheduler.WithConfig(provider),
		scheduler.WithLogger(logger),
		scheduler.WithHooks(hooks),
	)

	unsubscribe := sched.Subscribe(func(snap *scheduler.Snapshot) {
		snapshotLogger(logger, snap).Debug("snapshot published")
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Close()

	if opts.watch {
		go func() {
			if err := layoutfile.Watch(ctx, path, host, doc.ModTime, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("layout watch stopped", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           newServer(sched, host, provider, runner, reg, logger).handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	printSuccess("Serving %s", path)
	printDetail("Listening on http://%s", opts.addr)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return ctx.Err()
}

// =============================================================================
// HTTP API
// =============================================================================

// server exposes one scheduler and its static host over HTTP.
type server struct {
	sched    *scheduler.Scheduler
	host     *anchor.StaticHost
	config   config.Provider
	runner   *pipeline.Runner
	gatherer prometheus.Gatherer
	logger   *log.Logger
}

func newServer(sched *scheduler.Scheduler, host *anchor.StaticHost, cfg config.Provider, runner *pipeline.Runner, gatherer prometheus.Gatherer, logger *log.Logger) *server {
	return &server{
		sched:    sched,
		host:     host,
		config:   cfg,
		runner:   runner,
		gatherer: gatherer,
		logger:   logger,
	}
}

func (s *server) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	r.Get("/snapshot", s.getSnapshot(pipeline.FormatJSON))
	r.Get("/snapshot.svg", s.getSnapshot(pipeline.FormatSVG))
	r.Get("/snapshot.png", s.getSnapshot(pipeline.FormatPNG))
	r.Get("/state", s.getState)
	r.Get("/layout", s.getLayout)
	r.Post("/trigger", s.postTrigger)
	r.Put("/anchors/{name}", s.putAnchor)
	r.Delete("/anchors/{name}", s.deleteAnchor)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

// instrument reports every request to the HTTP observability hooks, keyed
// by route pattern rather than raw path.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		hooks.OnRequest(r.Context(), r.Method, route)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, route, status, time.Since(start))
	})
}

var contentTypes = map[string]string{
	pipeline.FormatJSON: "application/json",
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatPNG:  "image/png",
}

func (s *server) getSnapshot(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.sched.Snapshot()
		if snap == nil {
			writeError(w, flerrors.New(flerrors.ErrCodeNotFound, "no snapshot published yet"))
			return
		}

		artifacts, err := s.runner.Render(r.Context(), sink.FromSnapshot(snap), pipeline.Options{
			Config:  s.config.Current(),
			Formats: []string{format},
			Logger:  s.logger,
		})
		if err != nil {
			s.logger.Error("render snapshot", "format", format, "seq", snap.Seq, "err", err)
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", contentTypes[format])
		w.Header().Set("ETag", fmt.Sprintf(`"%s"`, snap.ID))
		if snap.Failed() {
			w.Header().Set("X-Flowlines-Error", string(flerrors.GetCode(snap.Err)))
		}
		_, _ = w.Write(artifacts[format])
	}
}

// stateResponse is the body of GET /state.
type stateResponse struct {
	State string          `json:"state"`
	Seq   uint64          `json:"seq"`
	Stats scheduler.Stats `json:"stats"`
}

func (s *server) getState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{State: s.sched.State().String(), Stats: s.sched.Stats()}
	if snap := s.sched.Snapshot(); snap != nil {
		resp.Seq = snap.Seq
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) getLayout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, layoutfile.FromHost(s.host))
}

func (s *server) postTrigger(w http.ResponseWriter, r *http.Request) {
	s.sched.Trigger(scheduler.SourceManual)
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) putAnchor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := flerrors.ValidateAnchorName(name); err != nil {
		writeError(w, err)
		return
	}

	var box geom.Rect
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&box); err != nil {
		writeError(w, flerrors.Wrap(flerrors.ErrCodeInvalidInput, err, "decode anchor box"))
		return
	}
	doc := layoutfile.Document{
		Container: s.host.Container(),
		Elements:  []layoutfile.Element{{Name: name, X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}},
	}
	if err := doc.Validate(); err != nil {
		writeError(w, err)
		return
	}

	s.host.SetElement(name, box)
	s.logger.Debug("anchor updated", "name", name, "x", box.X, "y", box.Y)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) deleteAnchor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.host.RemoveElement(name) {
		writeError(w, flerrors.New(flerrors.ErrCodeNotFound, "anchor %q not found", name))
		return
	}
	s.logger.Debug("anchor removed", "name", name)
	w.WriteHeader(http.StatusNoContent)
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := flerrors.GetCode(err)
	if code == "" {
		code = flerrors.ErrCodeInternal
	}
	writeJSON(w, httpStatus(code), errorResponse{Code: string(code), Message: flerrors.UserMessage(err)})
}

func httpStatus(code flerrors.Code) int {
	switch code {
	case flerrors.ErrCodeInvalidInput, flerrors.ErrCodeInvalidFormat, flerrors.ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case flerrors.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
