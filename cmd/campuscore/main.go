// Command campuscore runs the campus restroom maintenance service and its
// offline tools.
//
//	campuscore serve  [--config file] [--addr host:port]
//	campuscore import [--config file] <rooms.csv|rooms.xlsx>
//	campuscore export [--config file] [--campus id] [--out path] [--upload] <active-work|census>
//	campuscore seed   [--config file]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"campuscore/internal/adapters/reports"
	"campuscore/internal/config"
	"campuscore/internal/core"
	"campuscore/internal/drafting"
	"campuscore/internal/httpapi"
	"campuscore/internal/infra/blob/s3"
	"campuscore/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

const usage = `Usage: campuscore <command> [flags]

Commands:
  serve    run the HTTP API
  import   merge a CSV or XLSX room list into the store
  export   write the active work or census report
  seed     load demo data into an empty store
`

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "serve":
		return runServe(ctx, args[1:], stderr)
	case "import":
		return runImport(ctx, args[1:], stdout, stderr)
	case "export":
		return runExport(ctx, args[1:], stdout, stderr)
	case "seed":
		return runSeed(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newFlagSet(name string, stderr io.Writer, configPath *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("campuscore "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(configPath, "config", "c", os.Getenv("CAMPUSCORE_CONFIG"), "path to YAML config file")
	return fs
}

// app holds the wired components shared by every command.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	svc      *core.Service
	registry *prometheus.Registry
	closer   io.Closer
}

func newApp(ctx context.Context, configPath string, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	store, closer, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := core.NewPrometheusRecorder(registry)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithMetrics(recorder),
		core.WithTracer(core.NewOTelTracer("campuscore")),
	}
	httpClient := &http.Client{
		Timeout:   cfg.Gemini.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	if gen := drafting.NewGemini(httpClient, cfg.Gemini.Endpoint, cfg.Gemini.Model, cfg.Gemini.APIKey); gen != nil {
		opts = append(opts, core.WithGenerator(gen))
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		svc:      core.NewService(store, opts...),
		registry: registry,
		closer:   closer,
	}, nil
}

func (a *app) Close() error { return a.closer.Close() }

// objectStore builds the artifact store selected by the reports backend.
func (a *app) objectStore(ctx context.Context) (reports.ObjectStore, error) {
	if a.cfg.Reports.Backend != config.ReportsS3 {
		return reports.NewMemoryObjectStore(), nil
	}
	store, err := s3.New(ctx, a.cfg.Reports.S3)
	if err != nil {
		return nil, fmt.Errorf("open report bucket: %w", err)
	}
	a.logger.Info("report artifacts stored in s3", "bucket", store.Bucket())
	objects := reports.NewS3ObjectStore(store)
	if a.cfg.Reports.URLExpiry > 0 {
		objects.URLExpiry = a.cfg.Reports.URLExpiry
	}
	return objects, nil
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	var configPath, addr string
	fs := newFlagSet("serve", stderr, &configPath)
	fs.StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	if addr != "" {
		a.cfg.HTTP.Addr = addr
	}

	shutdownTracing := telemetry.Setup(ctx, a.cfg.Telemetry.ServiceName, a.logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	objects, err := a.objectStore(ctx)
	if err != nil {
		return err
	}
	worker := reports.NewWorker(a.svc, objects, a.logger, a.cfg.Reports.QueueSize)
	worker.Start()

	handler := httpapi.NewHandler(a.svc,
		httpapi.WithExports(worker),
		httpapi.WithLogger(a.logger),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
	)
	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           otelhttp.NewHandler(handler.Routes(), "campuscore"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("campuscore listening",
			"addr", server.Addr,
			"storage", a.cfg.Storage.Driver,
			"reports", a.cfg.Reports.Backend,
			"generator", a.svc.HasGenerator())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		a.logger.Warn("export worker shutdown", "error", err)
	}
	a.logger.Info("campuscore stopped")
	return nil
}

func runImport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var configPath, format string
	fs := newFlagSet("import", stderr, &configPath)
	fs.StringVar(&format, "format", "", "csv or xlsx (default: from the file extension)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("import needs exactly one file")
	}
	path := fs.Arg(0)

	a, err := newApp(ctx, configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	importFormat := core.ImportFormat(format)
	if importFormat == "" {
		importFormat = core.FormatForFilename(path)
	}
	res, err := a.svc.Import(ctx, f, importFormat)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runExport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var configPath, campusID, out string
	var upload bool
	fs := newFlagSet("export", stderr, &configPath)
	fs.StringVar(&campusID, "campus", "", "census scope: campus id (default: all campuses)")
	fs.StringVarP(&out, "out", "o", "", "output file or directory, - for stdout (default: dated file in the working directory)")
	fs.BoolVar(&upload, "upload", false, "store the report in the configured artifact store instead of a local file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("export needs a report kind: active-work or census")
	}
	var kind reports.Kind
	switch fs.Arg(0) {
	case "active-work", string(reports.KindActiveWork):
		kind = reports.KindActiveWork
	case string(reports.KindCensus):
		kind = reports.KindCensus
	default:
		return fmt.Errorf("unknown report %q", fs.Arg(0))
	}

	a, err := newApp(ctx, configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	rendered, err := reports.Render(ctx, a.svc, reports.Request{Kind: kind, ScopeID: campusID}, time.Now().UTC())
	if err != nil {
		return err
	}

	if upload {
		objects, err := a.objectStore(ctx)
		if err != nil {
			return err
		}
		key := string(kind) + "/" + rendered.Filename
		artifact, err := objects.Put(ctx, key, rendered.Payload, reports.ContentTypeCSV, map[string]string{"kind": string(kind), "scope": campusID})
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, artifact.URL)
		return nil
	}

	if out == "-" {
		_, err := stdout.Write(rendered.Payload)
		return err
	}
	target := rendered.Filename
	if out != "" {
		target = out
		if info, err := os.Stat(out); err == nil && info.IsDir() {
			target = filepath.Join(out, rendered.Filename)
		}
	}
	if err := os.WriteFile(target, rendered.Payload, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(stdout, target)
	return nil
}

func runSeed(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var configPath string
	fs := newFlagSet("seed", stderr, &configPath)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	seeded, err := a.svc.Seed(ctx)
	if err != nil {
		return err
	}
	if seeded {
		fmt.Fprintln(stdout, "demo data loaded")
	} else {
		fmt.Fprintln(stdout, "store not empty, nothing seeded")
	}
	return nil
}
