// Package app wires the application together and runs it.
//
// The App type holds the shared dependencies and exposes the operational
// surface: the bot loop, the background stale-request sweeper, and the
// health/metrics server.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/appline-lab/voxsql/internal/audio"
	"github.com/appline-lab/voxsql/internal/bot"
	"github.com/appline-lab/voxsql/internal/channel"
	"github.com/appline-lab/voxsql/internal/config"
	"github.com/appline-lab/voxsql/internal/dedup"
	"github.com/appline-lab/voxsql/internal/llm"
	"github.com/appline-lab/voxsql/internal/observability"
	"github.com/appline-lab/voxsql/internal/pipeline"
	"github.com/appline-lab/voxsql/internal/rag"
	"github.com/appline-lab/voxsql/internal/requests"
	"github.com/appline-lab/voxsql/internal/storage"
	"github.com/appline-lab/voxsql/internal/transcribe"
	"github.com/appline-lab/voxsql/internal/tts"
	"github.com/appline-lab/voxsql/internal/worker"
)

const errBotInit = "bot initialization failed: %w"

// App holds the application dependencies.
type App struct {
	cfg      *config.Config
	database *storage.DB
	logger   *zerolog.Logger
}

func New(cfg *config.Config, database *storage.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.NewServer(a.database, a.cfg.HealthPort, a.logger).Start(ctx)
}

// RunBot wires the pipeline and consumes channel updates until ctx is
// cancelled.
func (a *App) RunBot(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.AudioDir, 0o750); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	tg, err := channel.NewTelegram(a.cfg.BotToken, a.logger)
	if err != nil {
		return fmt.Errorf(errBotInit, err)
	}

	llmClient := llm.New(a.cfg, a.logger)
	chains := rag.NewProvider(a.cfg, llmClient, a.logger)
	tracker := requests.NewTracker()

	transcriber := transcribe.New(
		&transcribe.ProcessRunner{
			Interpreter: a.cfg.TranscriberInterpreter,
			Script:      a.cfg.TranscriberScript,
			Logger:      a.logger,
		},
		int64(a.cfg.TranscribeConcurrency),
		a.cfg.TranscriptionCacheTTL,
		a.logger,
	)

	driver := pipeline.NewDriver(
		tracker,
		pipeline.NewRAGChains(chains),
		a.database,
		transcriber,
		audio.NewTranscoder(a.cfg.FfmpegPath, a.logger),
		tts.New(a.cfg.TTSBaseURL, a.cfg.TTSVoice, a.cfg.TTSLanguage, a.logger),
		tg,
		a.cfg.AudioDir,
		a.logger,
	)

	if a.cfg.RequestTTL > 0 {
		go a.runSweeper(ctx, tracker)
	}

	return bot.New(tg, dedup.New(a.cfg.DedupTTL), tracker, driver, a.logger).Run(ctx)
}

// runSweeper drops request records whose owner disappeared without
// cancelling. Disabled when RequestTTL is zero.
func (a *App) runSweeper(ctx context.Context, tracker *requests.Tracker) {
	err := worker.SingleTickerLoop(ctx, worker.SingleTickerConfig{
		Name:     "stale-request-sweeper",
		Interval: sweepInterval(a.cfg.RequestTTL),
		OnTick: func(context.Context) {
			if n := tracker.SweepStale(a.cfg.RequestTTL); n > 0 {
				observability.StaleRequestsSwept.Add(float64(n))
				observability.ActiveRequests.Set(float64(tracker.ActiveCount()))

				a.logger.Warn().Int("swept", n).Msg("dropped stale request records")
			}
		},
		Logger: a.logger,
	})
	if err != nil && ctx.Err() == nil {
		a.logger.Error().Err(err).Msg("sweeper stopped")
	}
}

// sweepInterval checks at a fraction of the TTL so a stale record lives at
// most ttl plus one interval, with a floor for very short TTLs.
func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	if interval > ttl {
		interval = ttl
	}

	return interval
}
