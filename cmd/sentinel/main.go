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
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"SwingSentinel/internal/collector"
	"SwingSentinel/internal/config"
	"SwingSentinel/internal/metrics"
	"SwingSentinel/internal/model"
	"SwingSentinel/internal/rangeindex"
	"SwingSentinel/internal/recorder"
	"SwingSentinel/internal/report"
	"SwingSentinel/internal/scheduler"
	"SwingSentinel/internal/state"
	"SwingSentinel/internal/swing"
	"SwingSentinel/internal/transport/httpapi"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = `usage:
  sentinel validate -symbol S -resolution R -start YYYY-MM-DD -end YYYY-MM-DD [-verbose] [-config path] [-csv path]
  sentinel watch [-config path]
`

var verbose bool

func debugf(format string, args ...interface{}) {
	if verbose {
		log.Printf("[DEBUG] "+format, args...)
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] load .env: %v", err)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(exitUsage)
	}
	switch os.Args[1] {
	case "validate":
		os.Exit(runValidate(os.Args[2:], os.Stdout, os.Stderr))
	case "watch":
		os.Exit(runWatch(os.Args[2:]))
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", os.Args[1], usage)
		os.Exit(exitUsage)
	}
}

func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	switch {
	case cfg.DataSource.CSVPath != "":
		return collector.NewCSVFetcher(cfg.DataSource.CSVPath)
	case cfg.DataSource.BaseURL != "":
		return collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.DataSource.Proxy)
	default:
		return collector.NewYahooFetcher(cfg.DataSource.Proxy)
	}
}

func openRecorder(cfg *config.Config) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		return recorder.NewNoopRecorder()
	}
	return sr
}

func runStatus(err error) string {
	switch {
	case errors.Is(err, model.ErrOrdering):
		return "ORDERING_ERROR"
	case errors.Is(err, model.ErrInvalidPrice):
		return "INVALID_PRICE"
	default:
		return "LOAD_ERROR"
	}
}

func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	symbol := fs.String("symbol", "", "instrument symbol")
	resolution := fs.String("resolution", "", "target resolution (1m, 5m, 15m, 30m, 1h, 4h, 1d, 1w)")
	startStr := fs.String("start", "", "first day, YYYY-MM-DD")
	endStr := fs.String("end", "", "last day (inclusive), YYYY-MM-DD")
	cfgFlag := fs.String("config", "", "config file path")
	csvPath := fs.String("csv", "", "read bars from a CSV file instead of the configured source")
	fs.BoolVar(&verbose, "verbose", false, "list every swing and log debug output")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if *startStr == "" || *endStr == "" {
		fmt.Fprintln(stderr, "validate: -start and -end are required")
		return exitUsage
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		fmt.Fprintf(stderr, "validate: bad -start: %v\n", err)
		return exitUsage
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		fmt.Fprintf(stderr, "validate: bad -end: %v\n", err)
		return exitUsage
	}
	if end.Before(start) {
		fmt.Fprintln(stderr, "validate: -end is before -start")
		return exitUsage
	}

	cfg, err := config.Load(configPath(*cfgFlag))
	if err != nil {
		fmt.Fprintf(stderr, "validate: %v\n", err)
		return exitUsage
	}
	if *symbol != "" {
		cfg.DataSource.Symbol = *symbol
	}
	if *resolution != "" {
		cfg.Aggregation.Resolution = *resolution
	}
	if *csvPath != "" {
		cfg.DataSource.CSVPath = *csvPath
	}
	verbose = verbose || cfg.Log.Verbose
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "validate: %v\n", err)
		return exitUsage
	}
	windows, err := swing.NormalizeWindows(cfg.Swing.Windows)
	if err != nil {
		fmt.Fprintf(stderr, "validate: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := newFetcher(cfg)
	col := collector.NewCollector(fetcher, cfg.DataSource.Symbol, cfg.SourceResolution(), cfg.Resolution())
	rec := openRecorder(cfg)
	defer rec.Close()
	debugf("source %s, resolution %s, windows %v, tie-break %s", fetcher.Name(), cfg.Resolution(), windows, cfg.TieBreak())

	run := &recorder.RunEvent{
		ID:         recorder.NewRunID(),
		Symbol:     cfg.DataSource.Symbol,
		Resolution: cfg.Resolution().String(),
		Start:      start,
		End:        end,
	}

	// -end names a whole day.
	res, err := col.Load(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		run.Status = runStatus(err)
		run.Error = err.Error()
		if rerr := rec.RecordRun(run); rerr != nil {
			log.Printf("[ERROR] record run: %v", rerr)
		}
		fmt.Fprintf(stderr, "validate: %v\n", err)
		return exitError
	}
	for _, w := range res.Warnings {
		debugf("%s", w)
	}

	detector := swing.NewDetector(cfg.TieBreak())
	v := &report.Validation{
		Symbol:     cfg.DataSource.Symbol,
		Resolution: cfg.Resolution().String(),
		Source:     res.Source,
		Start:      start,
		End:        end,
		RawCount:   res.RawCount,
		Removed:    res.Removed,
		BarCount:   len(res.Series),
	}
	// Load already rejected non-finite bars, so the tables are built once and
	// shared by every window.
	highs := rangeindex.NewMax(res.Series.Highs())
	lows := rangeindex.NewMin(res.Series.Lows())
	var all []model.SwingPoint
	for _, w := range windows {
		if err := swing.CheckWindow(len(res.Series), w); err != nil {
			v.Windows = append(v.Windows, report.WindowResult{Window: w, Err: err})
			debugf("window %d: %v", w, err)
			continue
		}
		swings := detector.DetectRange(res.Series, highs, lows, w, w, len(res.Series)-1-w)
		v.Windows = append(v.Windows, report.WindowResult{Window: w, Swings: swings})
		all = append(all, swings...)
	}
	slices.SortFunc(all, model.CompareSwings)
	v.Detected = len(all)
	all = swing.Cap(all, cfg.Swing.Cap)
	v.Retained = all

	fmt.Fprint(stdout, report.FormatValidation(v, verbose))

	run.RawCount = res.RawCount
	run.Removed = res.Removed
	run.BarCount = len(res.Series)
	run.SwingCount = len(all)
	run.Status = "OK"
	if err := rec.RecordRun(run); err != nil {
		log.Printf("[ERROR] record run: %v", err)
	}
	if err := rec.RecordSwings(run.ID, all); err != nil {
		log.Printf("[ERROR] record swings: %v", err)
	}
	return exitOK
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgFlag := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(configPath(*cfgFlag))
	if err != nil {
		log.Printf("[FATAL] load config: %v", err)
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("[FATAL] config validation: %v", err)
		return exitUsage
	}
	verbose = cfg.Log.Verbose

	log.Println("[INFO] SwingSentinel starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := newFetcher(cfg)
	log.Printf("[INFO] data source: %s", fetcher.Name())
	col := collector.NewCollector(fetcher, cfg.DataSource.Symbol, cfg.SourceResolution(), cfg.Resolution())

	rec := openRecorder(cfg)
	defer rec.Close()
	met := metrics.New()

	now := time.Now()
	lookback := time.Duration(cfg.DataSource.LookbackDays) * 24 * time.Hour
	run := &recorder.RunEvent{
		ID:         recorder.NewRunID(),
		Symbol:     cfg.DataSource.Symbol,
		Resolution: cfg.Resolution().String(),
		Start:      now.Add(-lookback),
		End:        now,
	}
	opts := state.Options{Windows: cfg.Swing.Windows, Cap: cfg.Swing.Cap, TieBreak: cfg.TieBreak()}
	mgr, cursor, res, err := scheduler.Bootstrap(ctx, col, opts, lookback, now)
	if err != nil {
		run.Status = runStatus(err)
		switch {
		case errors.Is(err, model.ErrOrdering):
			met.OrderingErrors.Inc()
		case errors.Is(err, model.ErrInvalidPrice):
			met.InvalidBars.Inc()
		}
		run.Error = err.Error()
		if rerr := rec.RecordRun(run); rerr != nil {
			log.Printf("[ERROR] record run: %v", rerr)
		}
		log.Printf("[FATAL] seed state: %v", err)
		return exitError
	}
	met.DuplicatesRemoved.Add(float64(res.Removed))

	st := mgr.Snapshot()
	run.RawCount = res.RawCount
	run.Removed = res.Removed
	run.BarCount = st.BarCount
	run.SwingCount = len(st.Swings)
	run.Status = "OK"
	if err := rec.RecordRun(run); err != nil {
		log.Printf("[ERROR] record run: %v", err)
	}
	debugf("seeded %d bars, %d swings, cursor %d", st.BarCount, len(st.Swings), cursor)

	sched := scheduler.NewScheduler(ctx, col, mgr, rec, met, run.ID, cursor)
	if err := sched.RegisterAll(cfg.Schedule.IngestCron, cfg.Schedule.SnapshotCron); err != nil {
		log.Printf("[FATAL] register cron tasks: %v", err)
		return exitUsage
	}
	sched.RunSnapshotNow()
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, ingesting now")
		go sched.RunIngestNow()
	}

	log.Println("[INFO] SwingSentinel is running. Press Ctrl+C to stop.")
	handler := httpapi.NewHandler(mgr, cfg.Resolution(), met.Handler()).Routes()
	if err := httpapi.Serve(ctx, cfg.HTTP.Addr, handler); err != nil {
		log.Printf("[ERROR] http view: %v", err)
		return exitError
	}

	log.Println("[INFO] shutdown signal received, stopping...")
	log.Print("[INFO] final state\n" + report.FormatSnapshot(cfg.DataSource.Symbol, mgr.Snapshot(), 10))
	return exitOK
}
