// Package bot routes inbound channel messages: deduplication, the cancel
// command, and dispatch of one pipeline run per accepted message.
package bot

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/appline-lab/voxsql/internal/channel"
	"github.com/appline-lab/voxsql/internal/dedup"
	"github.com/appline-lab/voxsql/internal/observability"
	"github.com/appline-lab/voxsql/internal/pipeline"
	"github.com/appline-lab/voxsql/internal/requests"
)

// cancelCommand aborts the sender's newest in-flight request. Matched
// case-insensitively on the trimmed message body.
const cancelCommand = "cancelar"

// Runner executes one request through the pipeline.
type Runner interface {
	Run(ctx context.Context, rec *requests.Record, msg channel.Message)
}

// Bot consumes the channel's update stream and dispatches requests.
type Bot struct {
	client  channel.Client
	dedup   *dedup.Store
	tracker *requests.Tracker
	runner  Runner
	logger  *zerolog.Logger

	wg sync.WaitGroup
}

func New(client channel.Client, store *dedup.Store, tracker *requests.Tracker, runner Runner, logger *zerolog.Logger) *Bot {
	return &Bot{
		client:  client,
		dedup:   store,
		tracker: tracker,
		runner:  runner,
		logger:  logger,
	}
}

// Run consumes updates until ctx is cancelled or the stream closes, then
// waits for in-flight pipeline runs to finish.
func (b *Bot) Run(ctx context.Context) error {
	updates, err := b.client.Updates(ctx)
	if err != nil {
		return err
	}

	b.logger.Info().Msg("listening for messages")

	for msg := range updates {
		b.handle(ctx, msg)
	}

	b.wg.Wait()

	return nil
}

func (b *Bot) handle(ctx context.Context, msg channel.Message) {
	if msg.Body == "" && !msg.IsVoice() {
		return
	}

	if b.dedup.Seen(msg.ID) {
		observability.MessagesDeduplicated.Inc()
		b.logger.Debug().Str("message_id", msg.ID).Msg("duplicate message dropped")

		return
	}

	b.dedup.Remember(msg.ID)

	if isCancelCommand(msg) {
		b.cancel(ctx, msg.From)

		return
	}

	rec := b.tracker.Create(msg.From)
	observability.ActiveRequests.Set(float64(b.tracker.ActiveCount()))

	b.logger.Info().
		Str("request_id", rec.ID).
		Str("user_id", msg.From).
		Bool("voice", msg.IsVoice()).
		Msg("request accepted")

	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		b.runner.Run(ctx, rec, msg)
	}()
}

// cancel flags the sender's newest active request and confirms in either
// direction. The flagged run stops at its next checkpoint; nothing is
// interrupted here.
func (b *Bot) cancel(ctx context.Context, userID string) {
	reply := pipeline.MsgNothingToCancel
	if b.tracker.CancelLatest(userID) {
		reply = pipeline.MsgCancelled
	}

	if err := b.client.SendText(ctx, userID, reply); err != nil {
		b.logger.Error().Err(err).Str("user_id", userID).Msg("cancel confirmation failed")
	}
}

func isCancelCommand(msg channel.Message) bool {
	return !msg.IsVoice() && strings.EqualFold(strings.TrimSpace(msg.Body), cancelCommand)
}
