// burst2safe converts ASF Sentinel-1 burst SLC products to the ESA SAFE
// format.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/internal/config"
	"github.com/robert-malhotra/burst2safe/internal/download"
	"github.com/robert-malhotra/burst2safe/internal/safe"
	"github.com/robert-malhotra/burst2safe/internal/search"
	"github.com/robert-malhotra/burst2safe/internal/writer"
)

const description = `Convert a set of ASF burst SLCs to the ESA SAFE format.

You can either provide a list of burst granules, or define a burst group by
providing the orbit number and a bounding box.`

type options struct {
	orbit            int
	useRelativeOrbit bool
	bbox             []float64
	startDate        string
	endDate          string
	pols             []string
	swaths           []string
	mode             string
	minBursts        int
	allAnns          bool
	keepFiles        bool
	workDir          string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "burst2safe [granules...]",
		Short:         "Convert ASF burst SLCs to the ESA SAFE format",
		Long:          description,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(args); err != nil {
				return err
			}
			return run(cmd.Context(), args, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.orbit, "orbit", 0, "orbit number of the bursts (absolute unless --relative-orbit)")
	flags.BoolVar(&opts.useRelativeOrbit, "relative-orbit", false, "treat --orbit as a relative orbit number (requires --start and --end)")
	flags.Float64SliceVar(&opts.bbox, "bbox", nil, "bounding box of the bursts (minLon,minLat,maxLon,maxLat)")
	flags.StringVar(&opts.startDate, "start", "", "start date for relative orbit search (YYYY-MM-DD)")
	flags.StringVar(&opts.endDate, "end", "", "end date for relative orbit search (YYYY-MM-DD)")
	flags.StringSliceVar(&opts.pols, "pols", nil, "polarizations to include (VV VH HV HH; default VV)")
	flags.StringSliceVar(&opts.swaths, "swaths", nil, "swaths to include (default all)")
	flags.StringVar(&opts.mode, "mode", "IW", "acquisition mode (IW or EW)")
	flags.IntVar(&opts.minBursts, "min-bursts", 0, "minimum number of bursts per swath/polarization group")
	flags.BoolVar(&opts.allAnns, "all-anns", false, "include product annotations for all swaths, regardless of included bursts")
	flags.BoolVar(&opts.keepFiles, "keep-files", false, "keep the intermediate downloaded files")
	flags.StringVar(&opts.workDir, "work-dir", "", "directory to create the SAFE in (default current directory)")
	return cmd
}

func (o *options) validate(granules []string) error {
	byGranule := len(granules) > 0
	byGroup := o.orbit != 0 || len(o.bbox) > 0
	switch {
	case byGranule && byGroup:
		return fmt.Errorf("provide either a granule list or group parameters (--orbit and --bbox), not both")
	case !byGranule && !byGroup:
		return fmt.Errorf("provide either a list of granules or group parameters (--orbit and --bbox)")
	case byGroup && (o.orbit == 0 || len(o.bbox) != 4):
		return fmt.Errorf("group search requires --orbit and a 4-value --bbox")
	}
	if o.useRelativeOrbit && (o.startDate == "" || o.endDate == "") {
		return fmt.Errorf("--relative-orbit requires --start and --end")
	}
	for i, pol := range o.pols {
		o.pols[i] = strings.ToUpper(pol)
	}
	for i, swath := range o.swaths {
		o.swaths[i] = strings.ToUpper(swath)
	}
	o.mode = strings.ToUpper(o.mode)
	return nil
}

func run(ctx context.Context, granules []string, opts *options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.minBursts <= 0 {
		opts.minBursts = cfg.Assembly.MinBursts
	}
	workDir := opts.workDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return err
		}
	}

	var backend search.Backend
	switch cfg.Search.Backend {
	case "stac":
		backend = search.NewSTACClient(cfg.Search.STACBaseURL, cfg.Search.Timeout).WithLogger(logger)
	default:
		backend = search.NewASFClient(cfg.Search.ASFBaseURL, cfg.Search.Timeout).WithLogger(logger)
	}
	searcher := search.NewSearcher(backend).WithLogger(logger)

	results, err := findBursts(ctx, searcher, granules, opts)
	if err != nil {
		return err
	}
	logger.Info("found bursts", "count", len(results))

	creds, err := download.FindCredentials()
	if err != nil {
		return err
	}
	logger.Info("using Earthdata credentials", "source", creds.Source)

	scratch, err := download.ScratchDir(workDir)
	if err != nil {
		return err
	}
	if !opts.keepFiles {
		defer os.RemoveAll(scratch)
	}

	downloader := download.NewDownloader(creds, download.Options{
		Concurrency:       cfg.Download.Concurrency,
		RequestsPerSecond: cfg.Download.RequestsPerSecond,
		MaxWait:           cfg.Download.MaxWait,
	}).WithLogger(logger)

	files := downloader.Plan(results, scratch)
	logger.Info("downloading burst data", "files", len(files))
	if err := downloader.Fetch(ctx, files); err != nil {
		return err
	}

	records, err := loadRecords(results, scratch)
	if err != nil {
		return err
	}

	assembler := safe.NewAssembler(safe.Options{
		MinBursts:      opts.minBursts,
		AllAnnotations: opts.allAnns,
	}).WithLogger(logger)

	product, err := assembler.Assemble(ctx, records)
	if err != nil {
		return err
	}

	safePath, err := writer.New(workDir).WithLogger(logger).Write(product)
	if err != nil {
		return err
	}

	fmt.Println(safePath)
	return nil
}

func findBursts(ctx context.Context, searcher *search.Searcher, granules []string, opts *options) ([]*search.Result, error) {
	if len(granules) > 0 {
		slog.Info("using granule search")
		return searcher.FindGranules(ctx, granules)
	}

	slog.Info("using burst group search")
	query := search.GroupQuery{
		Orbit:            opts.orbit,
		Extent:           [4]float64{opts.bbox[0], opts.bbox[1], opts.bbox[2], opts.bbox[3]},
		Polarizations:    opts.pols,
		Swaths:           opts.swaths,
		Mode:             opts.mode,
		MinBursts:        opts.minBursts,
		UseRelativeOrbit: opts.useRelativeOrbit,
	}
	if opts.useRelativeOrbit {
		start, err := time.Parse("2006-01-02", opts.startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid --start date: %w", err)
		}
		end, err := time.Parse("2006-01-02", opts.endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid --end date: %w", err)
		}
		end = end.Add(24*time.Hour - time.Second)
		query.Start, query.End = &start, &end
	}
	return searcher.FindGroup(ctx, query)
}

func loadRecords(results []*search.Result, scratch string) ([]*burst.Record, error) {
	records := make([]*burst.Record, 0, len(results))
	for _, result := range results {
		relOrbit, err := result.RelativeOrbit()
		if err != nil {
			return nil, fmt.Errorf("burst %s: %w", result.Granule, err)
		}
		ref := burst.Reference{
			Granule:       result.Granule,
			SLCGranule:    result.SLCGranule,
			Swath:         burst.Swath(result.Swath),
			Polarization:  burst.Polarization(result.Polarization),
			ID:            result.RelativeBurstID,
			Index:         result.BurstIndex,
			Direction:     result.FlightDirection,
			AbsoluteOrbit: result.AbsoluteOrbit,
			RelativeOrbit: relOrbit,
			DataURL:       result.DataURL,
			MetadataURL:   result.MetadataURL,
			MetadataPath:  filepath.Join(scratch, result.SLCGranule+".xml"),
			DataPath:      filepath.Join(scratch, result.Granule+".dat"),
		}
		record, err := burst.Load(ref)
		if err != nil {
			return nil, err
		}
		record.Footprint = result.Footprint
		records = append(records, record)
	}
	return records, nil
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
