package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/ephysdb/internal/config"
	"github.com/mwantia/ephysdb/internal/metrics"
	"github.com/mwantia/ephysdb/internal/session"
	"github.com/mwantia/ephysdb/internal/settingsxml"
	"github.com/mwantia/ephysdb/pkg/db/store"
	"github.com/mwantia/ephysdb/pkg/log"
	"github.com/mwantia/fabric/pkg/container"
	"github.com/prometheus/client_golang/prometheus"
)

// Options control how every session of a run is written.
type Options struct {
	Overwrite       bool
	RequireSettings bool
}

// Summary is the outcome of one run.
type Summary struct {
	RunID    string
	Ingested []string
	Skipped  map[string]error
	Failed   map[string]error
}

// Runner drives sessions one at a time through locate, parse, reconcile and
// write. It is not safe for concurrent use.
type Runner struct {
	cfg     *config.BaseConfig
	sc      *container.ServiceContainer
	log     log.LoggerService
	store   store.MetadataStore
	locator *session.Locator
	writer  *Writer
	metrics *metrics.IngestMetrics
}

func NewRunner(cfg *config.BaseConfig, logger log.LoggerService, st store.MetadataStore) (*Runner, error) {
	m, err := metrics.NewIngestMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("failed to register ingest metrics: %w", err)
	}

	r := &Runner{
		cfg:     cfg,
		sc:      container.NewServiceContainer(),
		log:     logger,
		store:   st,
		locator: session.NewLocator(cfg.Ingest.Roots, cfg.Ingest.Rigs),
		metrics: m,
	}

	if err := r.setupServices(); err != nil {
		return nil, err
	}

	writerLog, err := log.Resolve(context.Background(), r.sc, "logger:writer")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve writer logger: %w", err)
	}
	r.writer = NewWriter(st, writerLog)

	return r, nil
}

func (r *Runner) setupServices() error {
	errs := container.Errors{}

	r.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](r.sc,
		container.With[log.LoggerService](),
		container.WithInstance(r.log)))

	r.log.Debug("Registering 'MetadataStore'...")
	errs.Add(container.Register[store.GormStore](r.sc,
		container.With[store.MetadataStore](),
		container.WithInstance(r.store)))

	return errs.Errors()
}

// Run ingests every identifier in order. Sessions with missing metadata are
// skipped, other failures are recorded and the run continues with the next id.
func (r *Runner) Run(ctx context.Context, ids []string, opts Options) Summary {
	summary := Summary{
		RunID:   uuid.NewString(),
		Skipped: map[string]error{},
		Failed:  map[string]error{},
	}
	logger := r.log.Named("run").With("run_id", summary.RunID)
	logger.Info("Starting ingest of %d sessions (overwrite: %t)", len(ids), opts.Overwrite)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			logger.Warn("Ingest cancelled before '%s': %v", id, err)
			summary.Failed[id] = err
			continue
		}

		logger.Info("Adding %s to db...", id)
		started := time.Now()

		batch, err := r.IngestSession(ctx, id, opts)
		switch {
		case err == nil:
			summary.Ingested = append(summary.Ingested, id)
			r.metrics.RecordSession(metrics.ResultIngested, time.Since(started))
			r.metrics.RecordRows(batch.Rows())
			logger.Info("Added %s: %d probes, %d probe recordings, %d units",
				id, len(batch.Probes), len(batch.ProbeRecordings), len(batch.SortedUnits))
		case errors.Is(err, ErrMissingMetadata):
			summary.Skipped[id] = err
			r.metrics.RecordSession(metrics.ResultSkipped, time.Since(started))
			logger.Error("Skipping %s: %v", id, err)
		default:
			summary.Failed[id] = err
			r.metrics.RecordSession(metrics.ResultFailed, time.Since(started))
			logger.Error("Failed to add %s: %v", id, err)
		}
	}

	r.metrics.RecordRun(time.Now(), len(summary.Failed))
	logger.Info("Finished ingest: %d added, %d skipped, %d failed",
		len(summary.Ingested), len(summary.Skipped), len(summary.Failed))

	return summary
}

// IngestSession locates, reconciles and writes a single session.
func (r *Runner) IngestSession(ctx context.Context, id string, opts Options) (*store.Batch, error) {
	files, err := r.locator.Locate(id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) ||
			errors.Is(err, session.ErrNoMetricsFiles) ||
			errors.Is(err, session.ErrNoSessionID) {
			return nil, fmt.Errorf("%w: %w", ErrMissingMetadata, err)
		}
		return nil, err
	}

	var info *settingsxml.Info
	if files.SettingsXML != "" {
		info, err = settingsxml.ParseFile(files.SettingsXML)
		if errors.Is(err, settingsxml.ErrMissingField) {
			return nil, fmt.Errorf("%w: %w", ErrMissingMetadata, err)
		}
		if err != nil {
			return nil, err
		}
	}

	serialToLetter, err := Reconcile(info, files.ProbeLetterToMetricsCSV, files.ProbeSerialToMetricsCSV, opts.RequireSettings)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", files.ID, err)
	}

	in := SessionInput{
		SessionID:          files.ID,
		Settings:           info,
		SerialToLetter:     serialToLetter,
		SerialToMetricsCSV: MetricsBySerial(serialToLetter, files.ProbeLetterToMetricsCSV),
	}
	if info != nil {
		in.Rig = r.locator.RigForHostname(info.Hostname)
	}

	return r.writer.Write(ctx, in, opts.Overwrite)
}

// Close releases the service container and exports run metrics when configured.
func (r *Runner) Close(ctx context.Context) error {
	var errs []error

	if path := r.cfg.Metrics.Textfile; path != "" {
		if err := r.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics textfile: %w", err))
		}
	}

	if err := r.sc.Cleanup(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to complete service container cleanup: %w", err))
	}

	return errors.Join(errs...)
}
