package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/aether/internal/host"
	"github.com/Sumatoshi-tech/aether/pkg/aether"
	"github.com/Sumatoshi-tech/aether/pkg/frontend"
	"github.com/Sumatoshi-tech/aether/pkg/observability"
	"github.com/Sumatoshi-tech/aether/pkg/plugin"
	"github.com/Sumatoshi-tech/aether/pkg/safeconv"
	"github.com/Sumatoshi-tech/aether/pkg/sourcemap"
)

// Routes served by "aether serve".
const (
	routeTransform = "/v1/transform"
	routeHealth    = "/healthz"
	routeMetrics   = "/metrics"
)

const (
	// requestOverhead is the body allowance on top of the source size limit.
	requestOverhead   = 64 << 10
	shutdownGrace     = 10 * time.Second
	queryIncludeTree  = "tree"
	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"
)

// TransformRequest is the body of POST /v1/transform.
type TransformRequest struct {
	File     string `json:"file"`
	Source   string `json:"source"`
	Language string `json:"language,omitempty"`
	// Config is the plugin payload: a JSON string holding the payload, or the
	// payload itself. Omitted means the server's configured default.
	Config json.RawMessage `json:"config,omitempty"`
	// Segments map generated ranges of Source to original positions.
	Segments []sourcemap.Segment `json:"segments,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type serveOptions struct {
	addr string
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP transform service",
		Long: `Serve transforms over HTTP.

Routes:
  POST /v1/transform  {"file": "App.tsx", "source": "...", "config": {"rules": ["oid"]},
                      "segments": [{"generated_start": 0, "generated_end": 4, "original": {...}}]}
  GET  /healthz
  GET  /metrics       Prometheus scrape endpoint`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, global, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config)")

	return cmd
}

func runServe(ctx context.Context, global *globalOptions, opts *serveOptions, cmd *cobra.Command) error {
	sess, err := openSession(global, observability.ModeServe, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.close(context.WithoutCancel(ctx))

	handler, err := newServerHandler(sess)
	if err != nil {
		return err
	}

	addr := sess.cfg.Server.Addr
	if opts.addr != "" {
		addr = opts.addr
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadTimeout:       sess.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: sess.cfg.Server.ReadTimeout,
		WriteTimeout:      sess.cfg.Server.WriteTimeout,
		IdleTimeout:       sess.cfg.Server.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return observability.ContextWithLogger(context.WithoutCancel(ctx), sess.logger)
		},
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- server.Serve(listener)
	}()

	sess.logger.InfoContext(ctx, "aether server listening", "addr", listener.Addr().String())

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	sess.logger.InfoContext(ctx, "aether server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// transformServer holds the dependencies of the HTTP handlers.
type transformServer struct {
	runner      *host.Runner
	maxBodySize int64
	slots       chan struct{}
}

func newServerHandler(sess *session) (http.Handler, error) {
	maxSize, err := sess.cfg.MaxFileSizeBytes()
	if err != nil {
		return nil, err
	}

	hostOpts := host.Options{
		Workers:     sess.cfg.Host.Workers,
		MaxFileSize: maxSize,
		Language:    sess.cfg.Plugin.Frontend,
		Op:          string(observability.ModeServe),
	}

	if sess.cfg.Plugin.Config != "" {
		hostOpts.PluginConfig, hostOpts.HasPluginConfig = sess.cfg.Plugin.Config, true
	}

	runner, err := host.NewRunner(hostOpts, sess.providers.Tracer, sess.providers.Meter, sess.logger)
	if err != nil {
		return nil, err
	}

	srv := &transformServer{
		runner:      runner,
		maxBodySize: int64(safeconv.ClampUint64ToInt(maxSize)) + requestOverhead,
		slots:       make(chan struct{}, runner.Workers()),
	}

	return newServerMux(srv, sess.providers.Tracer, sess.providers.MetricsHandler), nil
}

// newServerMux routes the API through the tracing middleware. The metrics
// handler is mounted outside it when non-nil.
func newServerMux(srv *transformServer, tracer trace.Tracer, metrics http.Handler) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST "+routeTransform, srv.handleTransform)
	api.HandleFunc("GET "+routeHealth, handleHealth)

	mux := http.NewServeMux()
	mux.Handle("/", observability.HTTPMiddleware(tracer, api))

	if metrics != nil {
		mux.Handle("GET "+routeMetrics, metrics)
	}

	return mux
}

func handleHealth(rw http.ResponseWriter, hr *http.Request) {
	writeJSON(hr.Context(), rw, http.StatusOK, map[string]any{
		"status": "ok",
		"rules":  aether.RuleNames(),
	})
}

func (srv *transformServer) handleTransform(rw http.ResponseWriter, hr *http.Request) {
	ctx := hr.Context()

	var req TransformRequest

	decoder := json.NewDecoder(http.MaxBytesReader(rw, hr.Body, srv.maxBodySize))
	decoder.DisallowUnknownFields()

	err := decoder.Decode(&req)
	if err != nil {
		status := http.StatusBadRequest

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}

		writeJSON(ctx, rw, status, errorResponse{Error: "invalid request body: " + err.Error()})

		return
	}

	if req.File == "" {
		writeJSON(ctx, rw, http.StatusBadRequest, errorResponse{Error: "file is required"})

		return
	}

	includeTree := hr.URL.Query().Has(queryIncludeTree)

	unit := host.Unit{
		Name:        req.File,
		Content:     []byte(req.Source),
		Language:    req.Language,
		Segments:    req.Segments,
		ReleaseTree: !includeTree,
	}

	unit.Config, err = requestPayload(req.Config)
	if err != nil {
		writeJSON(ctx, rw, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	if req.Language != "" && frontend.GetLanguage(req.Language) == nil {
		writeJSON(ctx, rw, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("%v: %s", frontend.ErrUnsupportedLanguage, req.Language)})

		return
	}

	select {
	case srv.slots <- struct{}{}:
	case <-ctx.Done():
		writeJSON(ctx, rw, http.StatusServiceUnavailable, errorResponse{Error: ctx.Err().Error()})

		return
	}

	result := srv.runner.TransformUnit(ctx, unit)

	<-srv.slots

	writeJSON(ctx, rw, transformStatus(result.Err), newUnitReport(result, includeTree))
}

// requestPayload turns the request's config field into the configuration
// channel content. A JSON string carries the payload verbatim; any other JSON
// value is the payload itself.
func requestPayload(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil //nolint:nilnil // no override.
	}

	if raw[0] == '"' {
		var payload string

		err := json.Unmarshal(raw, &payload)
		if err != nil {
			return nil, fmt.Errorf("invalid config string: %w", err)
		}

		return &payload, nil
	}

	payload := string(raw)

	return &payload, nil
}

func transformStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, host.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, plugin.ErrConfigMalformed),
		errors.Is(err, frontend.ErrUnsupportedLanguage),
		errors.Is(err, sourcemap.ErrInvalidSegment):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

// writeJSON encodes value as the response body with the given status.
func writeJSON(ctx context.Context, rw http.ResponseWriter, status int, value any) {
	rw.Header().Set(contentTypeHeader, contentTypeJSON)
	rw.WriteHeader(status)

	encodeErr := json.NewEncoder(rw).Encode(value)
	if encodeErr != nil {
		observability.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode JSON response", "error", encodeErr)
	}
}
