// Package pipeline runs one machine through discovery, ingest, matching,
// enrichment and export. Collaborators are injected so the whole run can be
// exercised against an in-memory filesystem.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/labrun/internal/db"
	"github.com/banshee-data/labrun/internal/enrich"
	"github.com/banshee-data/labrun/internal/export"
	"github.com/banshee-data/labrun/internal/fsutil"
	"github.com/banshee-data/labrun/internal/ingest"
	"github.com/banshee-data/labrun/internal/match"
	"github.com/banshee-data/labrun/internal/protocol"
	"github.com/banshee-data/labrun/internal/security"
	"github.com/banshee-data/labrun/internal/series"
	"github.com/banshee-data/labrun/internal/summary"
	"github.com/banshee-data/labrun/internal/timeutil"
	"github.com/banshee-data/labrun/internal/version"
	"github.com/banshee-data/labrun/internal/widen"
)

// Sources reads the raw exports of one run. *ingest.Reader implements it.
type Sources interface {
	ReadRecorder(folder string) (series.RecorderTable, error)
	ReadProtocol(folder string, machine protocol.Machine) ([]protocol.Interval, error)
	ReadLogger(folder string) ([][]series.Reading, error)
	ReadDryness(folder string) (series.DrynessTable, error)
}

// Sink persists the results of a run. *export.Sink implements it.
type Sink interface {
	Write(machine string, res export.Result) ([]string, error)
}

// Archive records run provenance. *db.DB implements it.
type Archive interface {
	StartRun(ctx context.Context, run db.Run) (string, error)
	FinishRun(ctx context.Context, id string, finishedAt time.Time, counts db.RunCounts, intervals []db.IntervalRecord, outputs []string) error
	FailRun(ctx context.Context, id string, finishedAt time.Time, cause error) error
}

// Config wires a Pipeline. FS, Sources and Sink are required.
type Config struct {
	FS      fsutil.FileSystem
	Sources Sources
	Sink    Sink
	// Archive is optional; runs are not recorded without one.
	Archive Archive
	// Stage defaults to enrich.Default().
	Stage  enrich.Stage
	Logger *zap.Logger
	Clock  timeutil.Clock
}

// Pipeline processes machine runs.
type Pipeline struct {
	fs      fsutil.FileSystem
	sources Sources
	sink    Sink
	archive Archive
	stage   enrich.Stage
	log     *zap.Logger
	clock   timeutil.Clock
}

// New returns a Pipeline with defaults for unset optional collaborators.
func New(cfg Config) (*Pipeline, error) {
	if cfg.FS == nil || cfg.Sources == nil || cfg.Sink == nil {
		return nil, errors.New("pipeline: filesystem, sources and sink are required")
	}
	p := &Pipeline{
		fs:      cfg.FS,
		sources: cfg.Sources,
		sink:    cfg.Sink,
		archive: cfg.Archive,
		stage:   cfg.Stage,
		log:     cfg.Logger,
		clock:   cfg.Clock,
	}
	if p.stage == nil {
		p.stage = enrich.Default()
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.clock == nil {
		p.clock = timeutil.RealClock{}
	}
	return p, nil
}

// Options select what one Run processes.
type Options struct {
	// Machine is the selector as given by the operator. Unknown names run as
	// a generic machine and still name the output files.
	Machine  string
	DataRoot string
	// OutputDir is recorded in the archive; the Sink decides where files go.
	OutputDir string
	FillScope widen.FillScope
	// Summary writes the per-interval summary file.
	Summary bool
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Machine   protocol.Machine
	Folders   ingest.Folders
	Recorder  series.RecorderTable
	Logger    series.WideTable
	Summary   summary.Table
	Issues    []protocol.Issue
	Normalize widen.Report
	Counts    db.RunCounts
	Outputs   []string
}

// Run processes one machine. Nothing is written unless every stage succeeds.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	selector := strings.ToUpper(strings.TrimSpace(opts.Machine))
	if selector == "" {
		return nil, errors.New("pipeline: machine is required")
	}
	machine, known := protocol.ParseMachine(selector)
	// name prefixes the output files.
	name := security.SanitizeFilename(selector)
	log := p.log.With(zap.String("machine", name))
	if !known {
		log.Warn("unknown machine; filtering by interval without payload columns")
	}

	started := p.clock.Now()
	runID := ""
	if p.archive != nil {
		id, err := p.archive.StartRun(ctx, db.Run{
			Machine:     name,
			DataRoot:    opts.DataRoot,
			OutputDir:   opts.OutputDir,
			FillScope:   opts.FillScope.String(),
			EnrichStage: p.stage.Name(),
			Version:     version.Version,
			StartedAt:   started,
		})
		if err != nil {
			return nil, fmt.Errorf("archive run: %w", err)
		}
		runID = id
		log = log.With(zap.String("run_id", runID))
	}

	// The outcome is archived even when ctx is what ended the run.
	archiveCtx := context.WithoutCancel(ctx)
	res, err := p.process(ctx, log, name, machine, opts)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		if p.archive != nil {
			if aerr := p.archive.FailRun(archiveCtx, runID, p.clock.Now(), err); aerr != nil {
				log.Error("failed to archive run failure", zap.Error(aerr))
			}
		}
		return nil, err
	}
	res.RunID = runID

	if p.archive != nil {
		if err := p.archive.FinishRun(archiveCtx, runID, p.clock.Now(), res.Counts, intervalRecords(res.Summary), res.Outputs); err != nil {
			return res, fmt.Errorf("archive run: %w", err)
		}
	}
	log.Info("run complete",
		zap.Int("recorder_kept", res.Counts.RecorderKept),
		zap.Int("logger_kept", res.Counts.LoggerKept),
		zap.Int("intervals", res.Counts.Intervals),
		zap.Duration("elapsed", p.clock.Since(started)))
	return res, nil
}

// process computes every output in memory and only then hands them to the
// sink.
func (p *Pipeline) process(ctx context.Context, log *zap.Logger, name string, machine protocol.Machine, opts Options) (*Result, error) {
	dirs, err := ingest.DiscoverFolders(p.fs, opts.DataRoot)
	if err != nil {
		return nil, err
	}
	folders, err := ingest.Locate(dirs)
	if err != nil {
		return nil, err
	}
	log.Debug("located sources",
		zap.String("datarecorder", folders.Recorder),
		zap.String("protocol", folders.Protocol),
		zap.String("logger", folders.Logger),
		zap.String("dryness", folders.Dryness))

	rec, err := p.sources.ReadRecorder(folders.Recorder)
	if err != nil {
		return nil, err
	}
	ivs, err := p.sources.ReadProtocol(folders.Protocol, machine)
	if err != nil {
		return nil, err
	}
	readings, err := p.sources.ReadLogger(folders.Logger)
	if err != nil {
		return nil, err
	}
	dryness, err := p.readDryness(log, folders.Dryness)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	issues := protocol.Validate(ivs)
	for _, is := range issues {
		log.Warn("protocol", zap.String("issue", is.String()))
	}

	filtered := match.Contained(rec, ivs, machine.Attacher())
	wide, report, err := widen.Normalize(readings, widen.Options{Scope: opts.FillScope})
	if err != nil {
		return nil, fmt.Errorf("normalise logger %s: %w", folders.Logger, err)
	}
	matched := match.Asof(wide, ivs)

	enriched, err := p.stage.Enrich(filtered, dryness)
	if err != nil {
		return nil, fmt.Errorf("enrich %s: %w", p.stage.Name(), err)
	}
	sum := summary.Compute(enriched, matched, ivs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := export.Result{Recorder: enriched, Logger: matched}
	if opts.Summary {
		out.Summary = &sum
	}
	paths, err := p.sink.Write(name, out)
	if err != nil {
		return nil, err
	}

	return &Result{
		Machine:   machine,
		Folders:   folders,
		Recorder:  enriched,
		Logger:    matched,
		Summary:   sum,
		Issues:    issues,
		Normalize: report,
		Outputs:   paths,
		Counts: db.RunCounts{
			RecorderRows:   rec.Len(),
			RecorderKept:   enriched.Len(),
			LoggerReadings: report.Readings,
			LoggerRows:     wide.Len(),
			LoggerKept:     matched.Len(),
			Intervals:      len(ivs),
		},
	}, nil
}

// readDryness reads the optional dryness folder. An absent folder or one
// without CSV files yields an empty table.
func (p *Pipeline) readDryness(log *zap.Logger, folder string) (series.DrynessTable, error) {
	if folder == "" {
		return series.DrynessTable{}, nil
	}
	tbl, err := p.sources.ReadDryness(folder)
	if errors.Is(err, ingest.ErrMissingSource) {
		log.Warn("dryness folder has no data", zap.String("folder", folder))
		return series.DrynessTable{}, nil
	}
	return tbl, err
}

func intervalRecords(sum summary.Table) []db.IntervalRecord {
	out := make([]db.IntervalRecord, len(sum.Rows))
	for i, r := range sum.Rows {
		out[i] = db.IntervalRecord{
			Index:        r.Index,
			Start:        r.Interval.Start,
			End:          r.Interval.End,
			RecorderRows: r.RecorderRows,
			LoggerRows:   r.LoggerRows,
		}
	}
	return out
}
