// Package requests tracks in-flight user requests and their cooperative
// cancellation state.
//
// Cancellation is polled, never preemptive: the pipeline asks Cancelled at
// checkpoints between stages, and an external call already dispatched always
// completes, only its consumption is skipped.
package requests

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage identifies where in the pipeline a request currently is.
type Stage int

const (
	StageIngest Stage = iota
	StageTranscode
	StageTranscribe
	StageGenerateQuery
	StageExecute
	StageHumanize
	StageSynthesize
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIngest:
		return "ingest"
	case StageTranscode:
		return "transcode"
	case StageTranscribe:
		return "transcribe"
	case StageGenerateQuery:
		return "generate_query"
	case StageExecute:
		return "execute"
	case StageHumanize:
		return "humanize"
	case StageSynthesize:
		return "synthesize"
	case StageDone:
		return "done"
	}

	return "unknown"
}

// Record is one in-flight request. It is owned by the Tracker; the pipeline
// reads the ID and advances the stage through SetStage.
type Record struct {
	ID              string
	UserID          string
	CancelRequested bool
	Stage           Stage
	CreatedAt       time.Time
}

// Tracker keeps the active set of records. A user may have several
// concurrent records; cancellation targets the newest one.
type Tracker struct {
	mu     sync.Mutex
	active map[string][]*Record // userID -> records in creation order
	now    func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		active: make(map[string][]*Record),
		now:    time.Now,
	}
}

// Create registers and returns a new record for userID.
func (t *Tracker) Create(userID string) *Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := &Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Stage:     StageIngest,
		CreatedAt: t.now(),
	}

	t.active[userID] = append(t.active[userID], rec)

	return rec
}

// CancelLatest flags the most recently created active record for userID.
// It returns false when the user has no active request.
func (t *Tracker) CancelLatest(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs := t.active[userID]
	if len(recs) == 0 {
		return false
	}

	recs[len(recs)-1].CancelRequested = true

	return true
}

// Cancelled reports whether the request should stop: either its record was
// already finalized or cancellation was requested. This is the single
// cancellation observation point for the pipeline.
func (t *Tracker) Cancelled(userID, requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.find(userID, requestID)

	return rec == nil || rec.CancelRequested
}

// SetStage advances the record's stage. A finalized record is left alone.
func (t *Tracker) SetStage(userID, requestID string, stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec := t.find(userID, requestID); rec != nil {
		rec.Stage = stage
	}
}

// Finalize removes the record unconditionally. Safe to call more than once;
// the pipeline defers it so every exit path releases the record.
func (t *Tracker) Finalize(userID, requestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs := t.active[userID]
	for i, rec := range recs {
		if rec.ID == requestID {
			recs = append(recs[:i], recs[i+1:]...)

			break
		}
	}

	if len(recs) == 0 {
		delete(t.active, userID)

		return
	}

	t.active[userID] = recs
}

// ActiveCount returns the number of active records across all users.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, recs := range t.active {
		n += len(recs)
	}

	return n
}

// SweepStale removes records older than ttl and returns how many were
// dropped. A request whose owner disappeared without cancelling would
// otherwise pin its record forever.
func (t *Tracker) SweepStale(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-ttl)
	dropped := 0

	for userID, recs := range t.active {
		kept := recs[:0]

		for _, rec := range recs {
			if rec.CreatedAt.Before(cutoff) {
				dropped++

				continue
			}

			kept = append(kept, rec)
		}

		if len(kept) == 0 {
			delete(t.active, userID)

			continue
		}

		t.active[userID] = kept
	}

	return dropped
}

func (t *Tracker) find(userID, requestID string) *Record {
	for _, rec := range t.active[userID] {
		if rec.ID == requestID {
			return rec
		}
	}

	return nil
}
