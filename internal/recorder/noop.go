package recorder

import "SwingSentinel/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunEvent) error                       { return nil }
func (n *NoopRecorder) RecordSwings(_ string, _ []model.SwingPoint) error { return nil }
func (n *NoopRecorder) RecordSnapshot(_ *SnapshotEvent) error             { return nil }
func (n *NoopRecorder) Close() error                                      { return nil }
