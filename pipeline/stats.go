package pipeline

import (
	"maps"
	"sync"
)

// Outcome is how a run ended without error.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeNoOp      Outcome = "noop"
)

// NoOpReason explains why a run ended without a reply.
type NoOpReason string

const (
	NoOpNoTrigger       NoOpReason = "no_trigger"
	NoOpNoMedia         NoOpReason = "no_media"
	NoOpUnsupportedKind NoOpReason = "unsupported_kind"
	NoOpUnsupportedMIME NoOpReason = "unsupported_mime"
)

// Result describes a finished run.
type Result struct {
	Outcome    Outcome
	NoOpReason NoOpReason // set when Outcome is OutcomeNoOp
	RunID      string     // empty for no_trigger, which never starts a run
	Kind       MediaKind
}

// Stats counts run outcomes. The zero value is ready to use.
type Stats struct {
	mu        sync.Mutex
	runs      int64
	delivered int64
	noops     map[NoOpReason]int64
	failures  map[Stage]int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Runs      int64
	Delivered int64
	NoOps     map[NoOpReason]int64
	Failures  map[Stage]int64
}

func (s *Stats) record(res Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noops == nil {
		s.noops = make(map[NoOpReason]int64)
		s.failures = make(map[Stage]int64)
	}
	s.runs++
	switch {
	case err != nil:
		s.failures[StageOf(err)]++
	case res.Outcome == OutcomeNoOp:
		s.noops[res.NoOpReason]++
	case res.Outcome == OutcomeDelivered:
		s.delivered++
	}
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		Runs:      s.runs,
		Delivered: s.delivered,
		NoOps:     make(map[NoOpReason]int64, len(s.noops)),
		Failures:  make(map[Stage]int64, len(s.failures)),
	}
	maps.Copy(snap.NoOps, s.noops)
	maps.Copy(snap.Failures, s.failures)
	return snap
}
