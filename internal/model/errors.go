package model

import (
	"errors"
	"fmt"
)

var (
	// ErrOrdering matches every *OrderingError.
	ErrOrdering = errors.New("chronological order violated")
	// ErrInsufficientData matches every *InsufficientDataError.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidWindow is returned for non-positive swing windows.
	ErrInvalidWindow = errors.New("swing window must be positive")
	// ErrWriterFault wraps unexpected failures recovered while applying a bar.
	ErrWriterFault = errors.New("writer fault")
	// ErrInvalidPrice matches every *InvalidPriceError.
	ErrInvalidPrice = errors.New("non-finite bar value")
)

// OrderingError reports an adjacent pair whose timestamps are not strictly
// increasing. It is fatal and must not be retried on the same input.
type OrderingError struct {
	Index int
	Prev  int64
	Curr  int64
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("ordering violation at index %d: timestamp %d does not follow %d", e.Index, e.Curr, e.Prev)
}

func (e *OrderingError) Is(target error) bool { return target == ErrOrdering }

// InvalidPriceError reports a bar holding NaN or an infinity. Such bars are
// rejected before they reach the range tables.
type InvalidPriceError struct {
	Index     int
	Timestamp int64
	Field     string
	Value     float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("bar %d (timestamp %d): %s is %v", e.Index, e.Timestamp, e.Field, e.Value)
}

func (e *InvalidPriceError) Is(target error) bool { return target == ErrInvalidPrice }

// InsufficientDataError reports a window that needs more bars than available.
type InsufficientDataError struct {
	Window int
	Need   int
	Have   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("window %d needs %d bars, have %d", e.Window, e.Need, e.Have)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// DuplicateTimestampWarning describes bars dropped by keep-last dedup. It is
// logged, never returned as an error.
type DuplicateTimestampWarning struct {
	Timestamp int64
	Dropped   int
}

func (w DuplicateTimestampWarning) String() string {
	return fmt.Sprintf("timestamp %d: dropped %d earlier duplicate(s)", w.Timestamp, w.Dropped)
}
