// Package pipeline drives one user request from inbound message to
// delivered answer.
//
// Every slow step is bracketed by cancellation checkpoints: the tracker's
// flag is polled before work is consumed, never by interrupting a call in
// flight. On a positive check the driver deletes any temporary files it
// created and finalizes the record without producing output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/appline-lab/voxsql/internal/channel"
	"github.com/appline-lab/voxsql/internal/observability"
	"github.com/appline-lab/voxsql/internal/rag"
	"github.com/appline-lab/voxsql/internal/requests"
	"github.com/appline-lab/voxsql/internal/storage"
)

// User-facing replies, matching the assistant's Portuguese surface.
const (
	MsgGenericError     = "❌ Desculpe, ocorreu um erro ao processar sua mensagem."
	MsgDatabaseError    = "❌ Desculpe, ocorreu um erro ao consultar o banco de dados."
	MsgNotUnderstood    = "❌ Desculpe, não entendi sua solicitação."
	MsgCancelled        = "🚫 Sua última requisição foi cancelada."
	MsgNothingToCancel  = "❌ Não há requisição em andamento para cancelar."
	MsgVoiceUnavailable = "❌ Desculpe, não consegui gerar o áudio da resposta."
)

// Invoker is one retrieval-augmented chain.
type Invoker interface {
	Invoke(ctx context.Context, inputs map[string]string) (*rag.Answer, error)
}

// ChainProvider yields the shared chains.
type ChainProvider interface {
	QueryChain(ctx context.Context) (Invoker, error)
	HumanizerChain(ctx context.Context) (Invoker, error)
}

// Executor runs one generated query against the external data source.
type Executor interface {
	Execute(ctx context.Context, query string) ([]storage.Row, error)
}

// Transcriber converts an audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Transcoder converts between audio formats.
type Transcoder interface {
	ToWav16kMono(ctx context.Context, inputPath, outputPath string) error
	ToOggOpus(ctx context.Context, inputPath, outputPath string) error
}

// Synthesizer turns text into WAV speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Driver sequences the pipeline stages for each request. Each request is
// independent state threaded through its record; the driver holds no lock
// across stages.
type Driver struct {
	tracker     *requests.Tracker
	chains      ChainProvider
	executor    Executor
	transcriber Transcriber
	transcoder  Transcoder
	synthesizer Synthesizer
	sender      channel.Client
	audioDir    string
	logger      *zerolog.Logger
}

func NewDriver(
	tracker *requests.Tracker,
	chains ChainProvider,
	executor Executor,
	transcriber Transcriber,
	transcoder Transcoder,
	synthesizer Synthesizer,
	sender channel.Client,
	audioDir string,
	logger *zerolog.Logger,
) *Driver {
	return &Driver{
		tracker:     tracker,
		chains:      chains,
		executor:    executor,
		transcriber: transcriber,
		transcoder:  transcoder,
		synthesizer: synthesizer,
		sender:      sender,
		audioDir:    audioDir,
		logger:      logger,
	}
}

// Run processes one inbound message under the given record. The record is
// finalized on every exit path; temporary files never outlive the request.
func (d *Driver) Run(ctx context.Context, rec *requests.Record, msg channel.Message) {
	var tempFiles []string

	outcome := observability.OutcomeFailed

	defer func() {
		for _, path := range tempFiles {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				d.logger.Warn().Err(err).Str("path", path).Msg("failed to remove temporary file")
			}
		}

		d.tracker.Finalize(rec.UserID, rec.ID)
		observability.RequestsTotal.WithLabelValues(outcome).Inc()
		observability.ActiveRequests.Set(float64(d.tracker.ActiveCount()))

		d.logger.Info().
			Str("request_id", rec.ID).
			Str("user_id", rec.UserID).
			Str("outcome", outcome).
			Msg("request finished")
	}()

	utterance := msg.Body

	if msg.IsVoice() {
		transcript, files, ok := d.ingestVoice(ctx, rec, msg)
		tempFiles = append(tempFiles, files...)

		if !ok {
			if d.cancelled(rec) {
				outcome = observability.OutcomeCancelled
			} else {
				d.sendText(ctx, msg.From, MsgGenericError)
			}

			return
		}

		utterance = transcript
	}

	mode, utterance := ParseOutputMode(utterance)

	if d.checkpoint(rec, "before query generation") {
		outcome = observability.OutcomeCancelled

		return
	}

	d.tracker.SetStage(rec.UserID, rec.ID, requests.StageGenerateQuery)

	query, err := d.generateQuery(ctx, utterance)
	if err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("query generation failed")

		if !d.cancelled(rec) {
			d.sendText(ctx, msg.From, MsgNotUnderstood)
		}

		return
	}

	if d.checkpoint(rec, "before query execution") {
		outcome = observability.OutcomeCancelled

		return
	}

	d.tracker.SetStage(rec.UserID, rec.ID, requests.StageExecute)

	rows, err := d.executeQuery(ctx, query)
	if err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("query execution failed")

		if !d.cancelled(rec) {
			d.sendText(ctx, msg.From, MsgDatabaseError)
		}

		return
	}

	rawData := storage.FormatRows(rows)

	if d.checkpoint(rec, "before humanization") {
		outcome = observability.OutcomeCancelled

		return
	}

	d.tracker.SetStage(rec.UserID, rec.ID, requests.StageHumanize)

	humanized, err := d.humanize(ctx, utterance, rawData)
	if err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("humanization failed")

		if !d.cancelled(rec) {
			d.sendText(ctx, msg.From, MsgGenericError)
		}

		return
	}

	if d.checkpoint(rec, "before delivery") {
		outcome = observability.OutcomeCancelled

		return
	}

	if d.deliver(ctx, rec, msg.From, humanized, mode, &tempFiles) {
		d.tracker.SetStage(rec.UserID, rec.ID, requests.StageDone)
		outcome = observability.OutcomeCompleted
	}
}

// ingestVoice downloads, transcodes and transcribes inbound audio. The
// returned paths must be cleaned up by the caller even on success. ok is
// false on cancellation or failure; the caller distinguishes the two via
// the tracker.
func (d *Driver) ingestVoice(ctx context.Context, rec *requests.Record, msg channel.Message) (string, []string, bool) {
	var files []string

	d.tracker.SetStage(rec.UserID, rec.ID, requests.StageIngest)

	media, err := d.sender.DownloadMedia(ctx, msg)
	if err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("media download failed")

		return "", files, false
	}

	// Names derive from the message identity, not the request, so a literal
	// re-delivery maps to the same path and hits the transcript cache.
	base := mediaBasename(msg.ID)

	oggPath := filepath.Join(d.audioDir, base+".ogg")
	if err := os.WriteFile(oggPath, media, 0o600); err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("saving audio failed")

		return "", files, false
	}

	files = append(files, oggPath)

	if d.checkpoint(rec, "after media save") {
		return "", files, false
	}

	d.tracker.SetStage(rec.UserID, rec.ID, requests.StageTranscode)

	wavPath := filepath.Join(d.audioDir, base+".wav")

	start := time.Now()
	if err := d.transcoder.ToWav16kMono(ctx, oggPath, wavPath); err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("transcoding failed")

		return "", files, false
	}
	observability.StageDuration.WithLabelValues(requests.StageTranscode.String()).Observe(time.Since(start).Seconds())

	files = append(files, wavPath)

	if d.checkpoint(rec, "after transcoding") {
		return "", files, false
	}

	d.tracker.SetStage(rec.UserID, rec.ID, requests.StageTranscribe)

	start = time.Now()

	transcript, err := d.transcriber.Transcribe(ctx, wavPath)
	if err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("transcription failed")

		return "", files, false
	}
	observability.StageDuration.WithLabelValues(requests.StageTranscribe.String()).Observe(time.Since(start).Seconds())

	if d.checkpoint(rec, "after transcription") {
		return "", files, false
	}

	d.logger.Info().Str("request_id", rec.ID).Str("transcript", transcript).Msg("voice message transcribed")

	return transcript, files, true
}

// mediaBasename makes a channel message ID safe as a file name.
func mediaBasename(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}

		return r
	}, id)
}

func (d *Driver) generateQuery(ctx context.Context, utterance string) (string, error) {
	chain, err := d.chains.QueryChain(ctx)
	if err != nil {
		return "", fmt.Errorf("query chain: %w", err)
	}

	start := time.Now()

	answer, err := chain.Invoke(ctx, map[string]string{"input": utterance})
	if err != nil {
		return "", err
	}

	observability.StageDuration.WithLabelValues(requests.StageGenerateQuery.String()).Observe(time.Since(start).Seconds())

	d.logger.Debug().Str("query", answer.Text).Msg("generated query")

	return answer.Text, nil
}

func (d *Driver) executeQuery(ctx context.Context, query string) ([]storage.Row, error) {
	start := time.Now()

	rows, err := d.executor.Execute(ctx, query)
	if err != nil {
		return nil, err
	}

	observability.StageDuration.WithLabelValues(requests.StageExecute.String()).Observe(time.Since(start).Seconds())

	return rows, nil
}

func (d *Driver) humanize(ctx context.Context, utterance, rawData string) (string, error) {
	chain, err := d.chains.HumanizerChain(ctx)
	if err != nil {
		return "", fmt.Errorf("humanizer chain: %w", err)
	}

	start := time.Now()

	answer, err := chain.Invoke(ctx, map[string]string{
		"input": utterance,
		"dados": rawData,
	})
	if err != nil {
		return "", err
	}

	observability.StageDuration.WithLabelValues(requests.StageHumanize.String()).Observe(time.Since(start).Seconds())

	return answer.Text, nil
}

// deliver sends the answer according to mode. Returns true when at least
// one delivery succeeded.
func (d *Driver) deliver(ctx context.Context, rec *requests.Record, to, humanized string, mode OutputMode, tempFiles *[]string) bool {
	delivered := false

	if mode == TextOnly || mode == AudioAndText {
		if d.sendText(ctx, to, humanized) {
			delivered = true
		}
	}

	if mode == AudioOnly || mode == AudioAndText {
		if d.checkpoint(rec, "before voice delivery") {
			return delivered
		}

		d.tracker.SetStage(rec.UserID, rec.ID, requests.StageSynthesize)

		if d.sendVoice(ctx, rec, to, humanized, tempFiles) {
			delivered = true
		} else if mode == AudioOnly && !d.cancelled(rec) {
			// Audio was the only requested surface; fall back to text so
			// the user is not left without an answer.
			d.sendText(ctx, to, MsgVoiceUnavailable)
		}
	}

	return delivered
}

func (d *Driver) sendVoice(ctx context.Context, rec *requests.Record, to, text string, tempFiles *[]string) bool {
	start := time.Now()

	wav, err := d.synthesizer.Synthesize(ctx, text)
	if err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("speech synthesis failed")

		return false
	}

	wavPath := filepath.Join(d.audioDir, rec.ID+"-tts.wav")
	oggPath := filepath.Join(d.audioDir, rec.ID+"-tts.ogg")

	if err := os.WriteFile(wavPath, wav, 0o600); err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("saving synthesized audio failed")

		return false
	}

	*tempFiles = append(*tempFiles, wavPath)

	if err := d.transcoder.ToOggOpus(ctx, wavPath, oggPath); err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("voice note transcoding failed")

		return false
	}

	*tempFiles = append(*tempFiles, oggPath)

	ogg, err := os.ReadFile(oggPath)
	if err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("reading voice note failed")

		return false
	}

	if d.checkpoint(rec, "before voice send") {
		return false
	}

	if err := d.sender.SendVoice(ctx, to, ogg); err != nil {
		d.logger.Error().Err(err).Str("request_id", rec.ID).Msg("voice delivery failed")

		return false
	}

	observability.StageDuration.WithLabelValues(requests.StageSynthesize.String()).Observe(time.Since(start).Seconds())

	return true
}

func (d *Driver) sendText(ctx context.Context, to, text string) bool {
	if err := d.sender.SendText(ctx, to, text); err != nil {
		d.logger.Error().Err(err).Str("to", to).Msg("text delivery failed")

		return false
	}

	return true
}

func (d *Driver) cancelled(rec *requests.Record) bool {
	return d.tracker.Cancelled(rec.UserID, rec.ID)
}

// checkpoint polls the cancellation flag between stages.
func (d *Driver) checkpoint(rec *requests.Record, at string) bool {
	if !d.cancelled(rec) {
		return false
	}

	d.logger.Info().
		Str("request_id", rec.ID).
		Str("user_id", rec.UserID).
		Str("checkpoint", at).
		Msg("request cancelled")

	return true
}
