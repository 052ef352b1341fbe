// Command labrun filters one machine's datarecorder and logger exports to the
// intervals of its protocol log and writes the cleaned CSV files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/labrun/internal/config"
	"github.com/banshee-data/labrun/internal/db"
	"github.com/banshee-data/labrun/internal/export"
	"github.com/banshee-data/labrun/internal/fsutil"
	"github.com/banshee-data/labrun/internal/ingest"
	"github.com/banshee-data/labrun/internal/monitoring"
	"github.com/banshee-data/labrun/internal/pipeline"
	"github.com/banshee-data/labrun/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("labrun: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("labrun", flag.ContinueOnError)
	var (
		configPath  string
		overrides   config.Overrides
		listRuns    int
		showVersion bool
	)
	fs.StringVar(&configPath, "config", "", "path to a YAML or JSON run config")
	fs.StringVar(&overrides.Machine, "machine", "", "machine name (OCEAN, DLRA, ...)")
	fs.StringVar(&overrides.DataRoot, "data", "", "machine data folder (default data/<MACHINE>)")
	fs.StringVar(&overrides.OutputDir, "out", "", "output folder (default output)")
	fs.StringVar(&overrides.DBPath, "db", "", "run archive database; empty disables archiving")
	fs.StringVar(&overrides.FillScope, "fill-scope", "", "serial forward-fill scope: concatenated or per_source")
	fs.BoolVar(&overrides.Summary, "summary", false, "write the per-interval summary file")
	fs.IntVar(&listRuns, "list", 0, "print the N most recent archived runs and exit (needs -db)")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVersion {
		fmt.Fprintf(stdout, "labrun %s\n", version.String())
		return nil
	}

	cfg := config.EmptyRunConfig()
	if configPath != "" {
		loaded, err := config.LoadRunConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.Apply(overrides)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := monitoring.NewLogger(cfg.GetLogLevel(), cfg.GetLogFormat())
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()
	monitoring.UseZap(logger)

	var archive *db.DB
	if path := cfg.GetDBPath(); path != "" {
		archive, err = db.NewDB(path)
		if err != nil {
			return fmt.Errorf("open run archive: %w", err)
		}
		defer archive.Close()
	}

	if listRuns > 0 {
		if archive == nil {
			return errors.New("-list needs -db or db_path")
		}
		return printRuns(ctx, stdout, archive, cfg.GetMachine(), listRuns)
	}

	if err := cfg.RequireMachine(); err != nil {
		return err
	}
	loc, err := cfg.GetLocation()
	if err != nil {
		return err
	}

	osfs := fsutil.OSFileSystem{}
	pcfg := pipeline.Config{
		FS: osfs,
		Sources: ingest.NewReader(osfs, ingest.Options{
			Location:           loc,
			RecorderDelimiter:  cfg.GetRecorderDelimiter(),
			RecorderTimeColumn: cfg.GetTimestampColumn(),
		}),
		Sink:   export.NewSink(osfs, cfg.GetOutputDir(), loc),
		Logger: logger,
	}
	if archive != nil {
		pcfg.Archive = archive
	}
	p, err := pipeline.New(pcfg)
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, pipeline.Options{
		Machine:   cfg.GetMachine(),
		DataRoot:  cfg.GetDataRoot(),
		OutputDir: cfg.GetOutputDir(),
		FillScope: cfg.GetFillScope(),
		Summary:   cfg.GetSummary(),
	})
	if err != nil {
		return err
	}
	for _, path := range res.Outputs {
		logger.Info("wrote output", zap.String("path", path))
	}
	return nil
}

func printRuns(ctx context.Context, w io.Writer, archive *db.DB, machine string, limit int) error {
	runs, err := archive.ListRuns(ctx, machine, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tMACHINE\tSTARTED\tSTATUS\tRECORDER\tLOGGER\tINTERVALS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d/%d\t%d\n",
			r.ID, r.Machine, r.StartedAt.Local().Format(time.DateTime), r.Status,
			r.Counts.RecorderKept, r.Counts.RecorderRows,
			r.Counts.LoggerKept, r.Counts.LoggerRows,
			r.Counts.Intervals)
	}
	return tw.Flush()
}
