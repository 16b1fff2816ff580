package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"SwingSentinel/internal/aggregator"
	"SwingSentinel/internal/collector"
	"SwingSentinel/internal/metrics"
	"SwingSentinel/internal/model"
	"SwingSentinel/internal/recorder"
	"SwingSentinel/internal/state"
)

// Bootstrap loads lookback of history and seeds a Manager with it. The last
// bucket is left out of the seed because it may still be forming; the
// returned cursor makes the first ingest rebuild it from source bars.
func Bootstrap(ctx context.Context, col *collector.Collector, opts state.Options, lookback time.Duration, now time.Time) (*state.Manager, int64, *collector.LoadResult, error) {
	res, err := col.Load(ctx, now.Add(-lookback), now)
	if err != nil {
		return nil, 0, nil, err
	}
	seed := res.Series
	var cursor int64
	if last, ok := seed.Last(); ok {
		seed = seed[:len(seed)-1]
		cursor = last.Timestamp - 1
	}
	mgr, err := state.NewManager(seed, opts)
	if err != nil {
		return nil, 0, res, err
	}
	return mgr, cursor, res, nil
}

// Scheduler runs the ingest and snapshot tasks on cron schedules. The ingest
// task is the only writer of Manager.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Manager   *state.Manager
	Recorder  recorder.Recorder
	Metrics   *metrics.Metrics
	RunID     string
	Ctx       context.Context
	Now       func() time.Time

	ingestMu sync.Mutex
	cursor   int64 // last source bar timestamp fetched
	folder   *aggregator.Folder

	snapMu  sync.Mutex
	tracker state.Tracker
}

// NewScheduler creates a new Scheduler. cursor is the timestamp after which
// source bars are fetched.
func NewScheduler(ctx context.Context, col *collector.Collector, mgr *state.Manager, rec recorder.Recorder, met *metrics.Metrics, runID string, cursor int64) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		Collector: col,
		Manager:   mgr,
		Recorder:  rec,
		Metrics:   met,
		RunID:     runID,
		Ctx:       ctx,
		Now:       time.Now,
		cursor:    cursor,
		folder:    aggregator.NewFolder(col.Target),
	}
}

// RegisterAll registers the ingest and snapshot tasks.
func (s *Scheduler) RegisterAll(ingestCron, snapshotCron string) error {
	if _, err := s.Cron.AddFunc(ingestCron, s.ingestTask); err != nil {
		return fmt.Errorf("register ingest task: %w", err)
	}
	if _, err := s.Cron.AddFunc(snapshotCron, s.snapshotTask); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunIngestNow executes the ingest task immediately.
func (s *Scheduler) RunIngestNow() { s.ingestTask() }

// RunSnapshotNow executes the snapshot task immediately.
func (s *Scheduler) RunSnapshotNow() { s.snapshotTask() }

func (s *Scheduler) ingestTask() {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	if s.Ctx.Err() != nil {
		return
	}
	bars, removed, err := s.Collector.FetchAfter(s.Ctx, s.cursor, s.Now())
	s.Metrics.DuplicatesRemoved.Add(float64(removed))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrOrdering):
			s.Metrics.OrderingErrors.Inc()
		case errors.Is(err, model.ErrInvalidPrice):
			// The cursor stays put: the batch is refetched, and rejected, until
			// the source corrects the bar.
			s.Metrics.InvalidBars.Inc()
		default:
			s.Metrics.LoadErrors.Inc()
		}
		log.Printf("[ERROR] ingest fetch: %v", err)
		return
	}

	var applied int
	for _, b := range bars {
		// Cancellation is honored between bars only.
		if s.Ctx.Err() != nil {
			break
		}
		s.cursor = b.Timestamp
		closed := s.folder.Push(b)
		if closed == nil {
			continue
		}
		if err := s.Manager.AppendBar(*closed); err != nil {
			switch {
			case errors.Is(err, model.ErrOrdering):
				s.Metrics.OrderingErrors.Inc()
			case errors.Is(err, model.ErrInvalidPrice):
				s.Metrics.InvalidBars.Inc()
			case errors.Is(err, model.ErrWriterFault):
				s.Metrics.WriterFaults.Inc()
			}
			log.Printf("[ERROR] append bar %d: %v", closed.Timestamp, err)
			continue
		}
		applied++
	}
	s.Metrics.BarsAppended.Add(float64(applied))
	if len(bars) > 0 {
		log.Printf("[INFO] ingested %d source bars, applied %d, version %d", len(bars), applied, s.Manager.Version())
	}
}

func (s *Scheduler) snapshotTask() {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	if !s.tracker.Changed(s.Manager.Version()) {
		return
	}
	st := s.Manager.Snapshot()
	s.Metrics.ObserveState(st)

	if err := s.Recorder.RecordSnapshot(&recorder.SnapshotEvent{RunID: s.RunID, State: st}); err != nil {
		log.Printf("[ERROR] record snapshot: %v", err)
	}
	if err := s.Recorder.RecordSwings(s.RunID, st.Swings); err != nil {
		log.Printf("[ERROR] record swings: %v", err)
	}
	if st.Stale {
		log.Printf("[WARN] swing state is stale: %s", st.Fault)
	}
}
