// Command purchase-report runs the purchase-record analysis pipeline over a
// CSV file and prints the summary tables, optionally persisting them and
// shipping run metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"purchasereport/internal/config"
	"purchasereport/internal/dataset"
	"purchasereport/internal/metrics"
	"purchasereport/internal/metrics/datadog"
	"purchasereport/internal/metrics/prompush"
	"purchasereport/internal/pipeline"
	"purchasereport/internal/storage"

	// register all storage backends; config selects which one runs.
	_ "purchasereport/internal/storage/all"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("purchase-report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath        string
		inputPath      string
		htmlPath       string
		storageKind    string
		metricsBackend string
		validate       bool
		verbose        bool
	)
	fs.StringVar(&cfgPath, "config", "", "pipeline config JSON path (default: built-in pipeline)")
	fs.StringVar(&inputPath, "input", "", "input CSV path (overrides config)")
	fs.StringVar(&htmlPath, "html-out", "", "also render every table as HTML into this file")
	fs.StringVar(&storageKind, "storage", "", "persist tables: none|"+strings.Join(storage.Kinds(), "|"))
	fs.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend: none|datadog|pushgateway (default from env)")
	fs.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&verbose, "v", false, "enable debug logs")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	// .env is a local-dev convenience; absence is not an error.
	_ = godotenv.Load()

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	log := newLogger(stderr, env.LogLevel, verbose)

	cfg := config.Default()
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			log.Error().Err(err).Str("path", cfgPath).Msg("cannot load config")
			return 1
		}
	}
	if inputPath != "" {
		cfg.Input.Path = inputPath
	}

	hasError := false
	for _, iss := range config.Validate(cfg) {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		return 1
	}
	if validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	ctx := context.Background()
	runID := uuid.NewString()
	log = log.With().Str("run_id", runID).Logger()

	if err := initMetrics(ctx, metricsBackend, env, cfg.Job, log); err != nil {
		log.Error().Err(err).Msg("metrics init failed")
		return 1
	}

	var repo storage.Repository
	if storageKind != "" && storageKind != "none" {
		dsn := env.StorageDSN
		if cfg.Storage != nil && cfg.Storage.DSN != "" {
			dsn = os.ExpandEnv(cfg.Storage.DSN)
		}
		repo, err = storage.New(ctx, storage.Config{Kind: storageKind, DSN: dsn})
		if err != nil {
			log.Error().Err(err).Str("kind", storageKind).Msg("storage init failed")
			return 1
		}
	} else if cfg.Storage != nil {
		repo, err = storage.New(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: os.ExpandEnv(cfg.Storage.DSN)})
		if err != nil {
			log.Error().Err(err).Str("kind", cfg.Storage.Kind).Msg("storage init failed")
			return 1
		}
	}
	defer func() {
		if err := pipeline.Shutdown(repo); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	opts := pipeline.Options{
		Logger: log,
		Stdout: stdout,
		Repo:   repo,
		RunID:  runID,
	}

	in, cleanup, err := openInput(cfg.Input.Path, stderr)
	if err != nil {
		log.Error().Err(err).Msg("cannot open input")
		return 1
	}
	defer cleanup()
	opts.Input = in

	if htmlPath != "" {
		f, err := os.Create(htmlPath)
		if err != nil {
			log.Error().Err(err).Str("path", htmlPath).Msg("cannot create html output")
			return 1
		}
		defer f.Close()
		opts.HTMLOut = f
	}

	start := time.Now()
	if err := pipeline.Run(ctx, cfg, opts); err != nil {
		log.Error().Err(err).Msg("run failed")
		return 1
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("run complete")
	return 0
}

// openInput opens the CSV and wraps it in a byte progress bar so long loads
// show movement on the terminal.
func openInput(path string, stderr io.Writer) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, func() {}, &dataset.IOError{Path: path, Err: err}
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, func() {}, &dataset.IOError{Path: path, Err: err}
	}
	bar := progressbar.NewOptions64(st.Size(),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetDescription("loading"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)
	return io.TeeReader(f, bar), func() { _ = f.Close() }, nil
}

func newLogger(w io.Writer, level string, verbose bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

// initMetrics installs the selected backend. Selection order: flag, then
// PREPORT_METRICS_BACKEND, then none.
func initMetrics(ctx context.Context, flagValue string, env config.Env, job string, log zerolog.Logger) error {
	name := flagValue
	if name == "" {
		name = env.MetricsBackend
	}
	switch name {
	case "", "none":
		return nil
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{JobName: job, Tags: env.DatadogTags})
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
	case "pushgateway":
		b, err := prompush.NewBackend(job, env.PushgatewayURL)
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
	default:
		return fmt.Errorf("unknown metrics backend %q", name)
	}
	log.Info().Str("backend", name).Msg("metrics enabled")
	return nil
}
