package recorder

import (
	"time"

	"github.com/google/uuid"

	"SwingSentinel/internal/model"
)

// RunEvent describes one load-and-detect pass (a validate run or the seed
// of a watch session).
type RunEvent struct {
	ID         string
	Symbol     string
	Resolution string
	Start      time.Time
	End        time.Time
	RawCount   int
	Removed    int
	BarCount   int
	SwingCount int
	Status     string // "OK", "ORDERING_ERROR", "INVALID_PRICE", "LOAD_ERROR"
	Error      string
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// SnapshotEvent records a SwingState observed by the snapshot task.
type SnapshotEvent struct {
	RunID string
	State model.SwingState
}

// Recorder persists history for later analysis.
type Recorder interface {
	RecordRun(run *RunEvent) error
	RecordSwings(runID string, swings []model.SwingPoint) error
	RecordSnapshot(snap *SnapshotEvent) error
	Close() error
}
