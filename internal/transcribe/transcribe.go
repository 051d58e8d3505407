// Package transcribe runs the external speech-to-text process behind a
// bounded concurrency limiter and a time-bounded result cache.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/appline-lab/voxsql/internal/observability"
)

var ErrEmptyTranscript = errors.New("empty transcript from external transcriber")

// Runner executes one external transcription and returns the transcript.
type Runner interface {
	Run(ctx context.Context, audioPath string) (string, error)
}

// KeyFunc derives the cache key from the audio path. The default keys on the
// resolved path, so a byte-identical file under another name is a miss: the
// fast path exists for literal re-delivery of the same file.
type KeyFunc func(audioPath string) string

func PathKey(audioPath string) string {
	abs, err := filepath.Abs(audioPath)
	if err != nil {
		return audioPath
	}

	return abs
}

const cacheSweepInterval = 2 * time.Minute

// Transcriber memoizes transcripts and caps concurrent external invocations
// process-wide. Queued callers are admitted in submission order as slots
// free up. The limiter does not cancel a queued call on its own; callers
// re-check their cancellation flag after the call resolves.
type Transcriber struct {
	runner  Runner
	results *cache.Cache
	slots   *semaphore.Weighted
	key     KeyFunc
	logger  *zerolog.Logger
}

func New(runner Runner, maxConcurrent int64, ttl time.Duration, logger *zerolog.Logger) *Transcriber {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}

	return &Transcriber{
		runner:  runner,
		results: cache.New(ttl, cacheSweepInterval),
		slots:   semaphore.NewWeighted(maxConcurrent),
		key:     PathKey,
		logger:  logger,
	}
}

// WithKeyFunc replaces the cache key derivation.
func (t *Transcriber) WithKeyFunc(key KeyFunc) *Transcriber {
	t.key = key

	return t
}

// Transcribe returns the transcript for the audio file, reusing a cached
// result when the same key was transcribed inside the TTL.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	key := t.key(audioPath)

	if cached, found := t.results.Get(key); found {
		t.logger.Debug().Str("key", key).Msg("transcription cache hit")
		observability.TranscriptionCacheHits.Inc()

		return cached.(string), nil
	}

	if err := t.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire transcription slot: %w", err)
	}
	defer t.slots.Release(1)

	// A racing caller may have filled the cache while this one queued.
	if cached, found := t.results.Get(key); found {
		return cached.(string), nil
	}

	start := time.Now()

	observability.TranscriptionsInFlight.Inc()
	text, err := t.runner.Run(ctx, audioPath)
	observability.TranscriptionsInFlight.Dec()

	if err != nil {
		return "", err
	}

	if text == "" {
		return "", ErrEmptyTranscript
	}

	t.logger.Info().
		Str("key", key).
		Dur("duration", time.Since(start)).
		Msg("audio transcribed")

	t.results.Set(key, text, cache.DefaultExpiration)

	return text, nil
}
