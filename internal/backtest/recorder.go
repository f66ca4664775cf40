package backtest

import (
	"time"

	"scalparo/internal/domain"
)

// Recorder receives every intent the engine evaluates, executed or not.
// The engine calls it synchronously from the bar loop, so implementations
// need no locking for a single run.
type Recorder interface {
	// RecordFill is called after an intent executed.
	RecordFill(marker domain.SignalMarker)
	// RecordReject is called when an intent was refused, with the
	// rejection cause.
	RecordReject(ts time.Time, intent *domain.Intent, cause error)
	// Markers returns the executed-intent timeline recorded so far.
	Markers() []domain.SignalMarker
	// Rejections returns the refused intents recorded so far.
	Rejections() []Rejection
}

// Rejection is one refused intent kept for diagnostics.
type Rejection struct {
	Timestamp time.Time
	Side      domain.Side
	Reason    string
	Cause     string
}

// SignalLog is the default in-memory Recorder. Markers append in bar order,
// so the timeline is chronological by construction.
type SignalLog struct {
	markers    []domain.SignalMarker
	rejections []Rejection
}

var _ Recorder = (*SignalLog)(nil)

// NewSignalLog creates an empty signal log.
func NewSignalLog() *SignalLog { return &SignalLog{} }

// RecordFill appends a chart marker for an executed intent.
func (s *SignalLog) RecordFill(marker domain.SignalMarker) {
	s.markers = append(s.markers, marker)
}

// RecordReject appends a diagnostic entry for a refused intent.
func (s *SignalLog) RecordReject(ts time.Time, intent *domain.Intent, cause error) {
	s.rejections = append(s.rejections, Rejection{
		Timestamp: ts,
		Side:      intent.Side,
		Reason:    intent.Reason,
		Cause:     cause.Error(),
	})
}

// Markers returns the buy/sell timeline in chronological order.
func (s *SignalLog) Markers() []domain.SignalMarker { return s.markers }

// Rejections returns the refused intents in chronological order.
func (s *SignalLog) Rejections() []Rejection { return s.rejections }
