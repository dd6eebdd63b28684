// Package pipeline wires the stages end to end:
//
//	loader → normalize → storetype → aggregate → report/storage
//
// Each stage consumes the previous stage's full output; a run is a pure
// function of the input file plus config, so re-running is always safe.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"purchasereport/internal/aggregate"
	"purchasereport/internal/config"
	"purchasereport/internal/dataset"
	"purchasereport/internal/loader"
	"purchasereport/internal/metrics"
	"purchasereport/internal/normalize"
	"purchasereport/internal/report"
	"purchasereport/internal/storage"
	"purchasereport/internal/storetype"
)

// Options carries run wiring that is not part of the pipeline config.
type Options struct {
	Logger zerolog.Logger

	// Input overrides cfg.Input.Path with an already-open reader (the CLI
	// wraps the file in a progress bar; tests pass strings).
	Input io.Reader

	// Stdout receives the rendered text tables. Nil discards them.
	Stdout io.Writer

	// HTMLOut, when non-nil, receives every table rendered as HTML.
	HTMLOut io.Writer

	// Repo, when non-nil, persists every aggregate table.
	Repo storage.Repository

	// RunID labels persisted rows and metrics for this run.
	RunID string

	// Now is a clock seam; nil means time.Now.
	Now func() time.Time
}

// Run executes the whole pipeline. The first structural error aborts the
// run; row-local coercion issues are logged, counted, and degraded to
// missing cells.
func Run(ctx context.Context, cfg config.Pipeline, opts Options) (err error) {
	log := opts.Logger
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	raw, err := load(cfg, opts)
	if err != nil {
		return err
	}
	metrics.IncCounter(metrics.RowsLoaded, float64(raw.Len()))
	log.Info().Int("rows", raw.Len()).Int("columns", len(raw.Columns)).Msg("loaded input")

	start := now()
	normalized, err := normalize.Apply(raw, cfg.Normalize, func(line int, field string, warnErr error) {
		metrics.IncCounter(metrics.CoerceWarnings, 1, "field:"+field)
		log.Warn().Int("line", line).Str("field", field).Err(warnErr).Msg("cell degraded to missing")
	})
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	metrics.IncCounter(metrics.RowsNormalized, float64(normalized.Len()))
	metrics.ObserveHistogram(metrics.StageSeconds, now().Sub(start).Seconds(), "stage:normalize")

	start = now()
	decomposed, storeCols, err := storetype.Decompose(normalized, cfg.StoreType.Field, cfg.StoreType.Discovery)
	if err != nil {
		return fmt.Errorf("decompose: %w", err)
	}
	metrics.IncCounter(metrics.StoreTypeCols, float64(len(storeCols)))
	metrics.ObserveHistogram(metrics.StageSeconds, now().Sub(start).Seconds(), "stage:decompose")
	log.Info().Strs("store_types", storeCols).Msg("decomposed store-type payload")

	// Reports are independent of each other: one bad report spec must not
	// swallow the rest of the run's output. Failures are combined and the
	// run still exits non-zero.
	var reportErrs error
	for _, rc := range cfg.Reports {
		if err := runReport(ctx, decomposed, rc, opts, now); err != nil {
			log.Error().Str("report", rc.Title).Err(err).Msg("report failed")
			reportErrs = multierr.Append(reportErrs, fmt.Errorf("report %q: %w", rc.Title, err))
			continue
		}
		metrics.IncCounter(metrics.ReportsWritten, 1)
	}

	// Store types are columns after decomposition, not cell values, so their
	// table cannot be expressed as a GroupBy report; it is synthesized here
	// from the discovered column set.
	if len(storeCols) > 0 {
		if err := runStoreTypeReport(ctx, decomposed, storeCols, cfg.StoreType, opts, now); err != nil {
			log.Error().Err(err).Msg("store-type report failed")
			reportErrs = multierr.Append(reportErrs, fmt.Errorf("store-type report: %w", err))
		} else {
			metrics.IncCounter(metrics.ReportsWritten, 1)
		}
	}
	return reportErrs
}

func load(cfg config.Pipeline, opts Options) (*dataset.Table, error) {
	if opts.Input != nil {
		return loader.Read(opts.Input, cfg.Input.Options)
	}
	return loader.ReadFile(cfg.Input.Path, cfg.Input.Options)
}

func runReport(ctx context.Context, t *dataset.Table, rc config.Report, opts Options, now func() time.Time) error {
	spec, err := toSpec(rc)
	if err != nil {
		return err
	}
	res, err := aggregate.GroupSummarize(t, spec)
	if err != nil {
		return err
	}
	res.Title = rc.Title
	return emit(ctx, res, opts, now)
}

// runStoreTypeReport builds the per-store-type purchase table: one row per
// discovered store type, each summing its decomposed count column.
func runStoreTypeReport(ctx context.Context, t *dataset.Table, cols []string, stc config.StoreType, opts Options, now func() time.Time) error {
	res, err := aggregate.SumColumns(t, aggregate.ColumnSumSpec{
		Columns:     cols,
		GroupColumn: "store_type",
		MeasureName: "purchases",
	})
	if err != nil {
		return err
	}
	res.Title = stc.ReportTitle
	if res.Title == "" {
		res.Title = "Purchases per store type"
	}
	return emit(ctx, res, opts, now)
}

func emit(ctx context.Context, res *aggregate.Result, opts Options, now func() time.Time) error {
	if opts.Stdout != nil {
		if _, err := io.WriteString(opts.Stdout, report.Text(res)+"\n"); err != nil {
			return err
		}
	}
	if opts.HTMLOut != nil {
		html, err := report.HTML(res)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(opts.HTMLOut, html); err != nil {
			return err
		}
	}
	if opts.Repo != nil {
		n, err := storage.SaveResult(ctx, opts.Repo, res, opts.RunID, now())
		if err != nil {
			return err
		}
		opts.Logger.Info().Str("table", storage.TableName(res.Title)).Int64("rows", n).Msg("persisted report")
	}
	return nil
}

func toSpec(rc config.Report) (aggregate.Spec, error) {
	spec := aggregate.Spec{
		GroupBy: rc.GroupBy,
		SortBy:  rc.SortBy,
	}
	for _, m := range rc.Measures {
		var kind aggregate.MeasureKind
		switch m.Kind {
		case "count":
			kind = aggregate.Count
		case "sum":
			kind = aggregate.Sum
		case "mean":
			kind = aggregate.Mean
		case "weighted_mean":
			kind = aggregate.WeightedMean
		default:
			return aggregate.Spec{}, fmt.Errorf("unknown measure kind %q", m.Kind)
		}
		spec.Measures = append(spec.Measures, aggregate.Measure{
			Kind:        kind,
			Field:       m.Field,
			WeightField: m.WeightField,
			Name:        m.Name,
		})
	}
	if rc.Filter != nil {
		spec.Filter = aggregate.EqualsFilter(rc.Filter.Field, rc.Filter.Equals)
	}
	return spec, nil
}

// Shutdown flushes and closes the run's sinks.
func Shutdown(repo storage.Repository) error {
	err := metrics.Close()
	if repo != nil {
		repo.Close()
	}
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
