package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/appline-lab/voxsql/internal/channel"
	"github.com/appline-lab/voxsql/internal/rag"
	"github.com/appline-lab/voxsql/internal/requests"
	"github.com/appline-lab/voxsql/internal/storage"
	"github.com/appline-lab/voxsql/internal/transcribe"
)

type fakeChain struct {
	mu     sync.Mutex
	answer string
	err    error
	hook   func()
	inputs []map[string]string
}

func (c *fakeChain) Invoke(_ context.Context, inputs map[string]string) (*rag.Answer, error) {
	c.mu.Lock()
	c.inputs = append(c.inputs, inputs)
	c.mu.Unlock()

	if c.hook != nil {
		c.hook()
	}

	if c.err != nil {
		return nil, c.err
	}

	return &rag.Answer{Text: c.answer}, nil
}

type fakeChains struct {
	query     *fakeChain
	humanizer *fakeChain
}

func (c *fakeChains) QueryChain(context.Context) (Invoker, error)     { return c.query, nil }
func (c *fakeChains) HumanizerChain(context.Context) (Invoker, error) { return c.humanizer, nil }

type fakeExecutor struct {
	rows    []storage.Row
	err     error
	hook    func()
	queries []string
}

func (e *fakeExecutor) Execute(_ context.Context, query string) ([]storage.Row, error) {
	e.queries = append(e.queries, query)

	if e.hook != nil {
		e.hook()
	}

	if e.err != nil {
		return nil, e.err
	}

	return e.rows, nil
}

type fakeTranscriber struct {
	transcript string
	err        error
	paths      []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	f.paths = append(f.paths, audioPath)

	return f.transcript, f.err
}

type fakeTranscoder struct {
	wavErr   error
	oggErr   error
	wavCalls []string
	oggCalls []string
}

func (f *fakeTranscoder) ToWav16kMono(_ context.Context, _, outputPath string) error {
	f.wavCalls = append(f.wavCalls, outputPath)
	if f.wavErr != nil {
		return f.wavErr
	}

	return os.WriteFile(outputPath, []byte("wav"), 0o600)
}

func (f *fakeTranscoder) ToOggOpus(_ context.Context, _, outputPath string) error {
	f.oggCalls = append(f.oggCalls, outputPath)
	if f.oggErr != nil {
		return f.oggErr
	}

	return os.WriteFile(outputPath, []byte("opus"), 0o600)
}

type fakeSynthesizer struct {
	wav []byte
	err error
}

func (f *fakeSynthesizer) Synthesize(context.Context, string) ([]byte, error) {
	return f.wav, f.err
}

type fakeClient struct {
	mu       sync.Mutex
	media    []byte
	mediaErr error
	textErr  error
	texts    []string
	voices   [][]byte
}

func (c *fakeClient) Updates(context.Context) (<-chan channel.Message, error) {
	return nil, nil
}

func (c *fakeClient) DownloadMedia(context.Context, channel.Message) ([]byte, error) {
	return c.media, c.mediaErr
}

func (c *fakeClient) SendText(_ context.Context, _, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.textErr != nil {
		return c.textErr
	}

	c.texts = append(c.texts, text)

	return nil
}

func (c *fakeClient) SendVoice(_ context.Context, _ string, audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.voices = append(c.voices, audio)

	return nil
}

func (c *fakeClient) sentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.texts...)
}

type harness struct {
	tracker     *requests.Tracker
	query       *fakeChain
	humanizer   *fakeChain
	executor    *fakeExecutor
	transcriber *fakeTranscriber
	transcoder  *fakeTranscoder
	synthesizer *fakeSynthesizer
	client      *fakeClient
	audioDir    string
	driver      *Driver
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		tracker:     requests.NewTracker(),
		query:       &fakeChain{answer: "SELECT nome, horas FROM view_apontamentos"},
		humanizer:   &fakeChain{answer: "Foram apontadas 12 horas hoje."},
		executor:    &fakeExecutor{rows: []storage.Row{{"nome": "Ana", "horas": 12}}},
		transcriber: &fakeTranscriber{transcript: "quantas horas foram apontadas hoje"},
		transcoder:  &fakeTranscoder{},
		synthesizer: &fakeSynthesizer{wav: []byte("wav-bytes")},
		client:      &fakeClient{media: []byte("inbound-ogg")},
		audioDir:    t.TempDir(),
	}

	logger := zerolog.Nop()
	h.driver = NewDriver(
		h.tracker,
		&fakeChains{query: h.query, humanizer: h.humanizer},
		h.executor,
		h.transcriber,
		h.transcoder,
		h.synthesizer,
		h.client,
		h.audioDir,
		&logger,
	)

	return h
}

func (h *harness) run(body string, voice bool) *requests.Record {
	msg := channel.Message{ID: "m1", From: "user-1", Body: body}
	if voice {
		msg.HasMedia = true
		msg.MediaType = channel.MediaVoice
		msg.MediaRef = "file-1"
	}

	rec := h.tracker.Create(msg.From)
	h.driver.Run(context.Background(), rec, msg)

	return rec
}

func TestRunTextHappyPath(t *testing.T) {
	h := newHarness(t)
	h.executor.rows = []storage.Row{
		{"nome": "Ana", "horas": 8},
		{"nome": "Bruno", "horas": 6},
		{"nome": "Clara", "horas": 4},
	}

	h.run("quantas horas cada pessoa apontou hoje", false)

	require.Equal(t, []string{"SELECT nome, horas FROM view_apontamentos"}, h.executor.queries)
	require.Equal(t, []string{"Foram apontadas 12 horas hoje."}, h.client.sentTexts())
	require.Empty(t, h.client.voices)

	require.Len(t, h.query.inputs, 1)
	require.Equal(t, "quantas horas cada pessoa apontou hoje", h.query.inputs[0]["input"])

	require.Len(t, h.humanizer.inputs, 1)
	require.Equal(t, storage.FormatRows(h.executor.rows), h.humanizer.inputs[0]["dados"])

	require.Zero(t, h.tracker.ActiveCount())
}

func TestRunCancelledBeforeStart(t *testing.T) {
	h := newHarness(t)

	msg := channel.Message{ID: "m1", From: "user-1", Body: "relatório"}
	rec := h.tracker.Create(msg.From)
	require.True(t, h.tracker.CancelLatest(msg.From))

	h.driver.Run(context.Background(), rec, msg)

	require.Empty(t, h.client.sentTexts())
	require.Empty(t, h.executor.queries)
	require.Zero(t, h.tracker.ActiveCount())
}

func TestRunCancelledDuringExecution(t *testing.T) {
	h := newHarness(t)
	h.executor.hook = func() {
		require.True(t, h.tracker.CancelLatest("user-1"))
	}

	h.run("relatório do dia", false)

	// The execute call completed, but its result was never consumed.
	require.Len(t, h.executor.queries, 1)
	require.Empty(t, h.humanizer.inputs)
	require.Empty(t, h.client.sentTexts())
	require.Zero(t, h.tracker.ActiveCount())
}

func TestRunQueryGenerationFailure(t *testing.T) {
	h := newHarness(t)
	h.query.err = errors.New("model unavailable")

	h.run("pergunta estranha", false)

	require.Equal(t, []string{MsgNotUnderstood}, h.client.sentTexts())
	require.Empty(t, h.executor.queries)
	require.Zero(t, h.tracker.ActiveCount())
}

func TestRunDatabaseFailure(t *testing.T) {
	h := newHarness(t)
	h.executor.err = errors.New("connection refused")

	h.run("quantos registros existem", false)

	require.Equal(t, []string{MsgDatabaseError}, h.client.sentTexts())
	require.Empty(t, h.humanizer.inputs)
	require.Zero(t, h.tracker.ActiveCount())
}

func TestRunVoiceMessage(t *testing.T) {
	h := newHarness(t)

	h.run("", true)

	require.Len(t, h.transcoder.wavCalls, 1)
	require.Len(t, h.transcriber.paths, 1)
	require.Equal(t, filepath.Join(h.audioDir, "m1.wav"), h.transcriber.paths[0])

	// The transcript drives the text pipeline.
	require.Equal(t, "quantas horas foram apontadas hoje", h.query.inputs[0]["input"])
	require.Equal(t, []string{"Foram apontadas 12 horas hoje."}, h.client.sentTexts())

	// Temporary audio files are removed on exit.
	entries, err := os.ReadDir(h.audioDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

type countingRunner struct {
	runs int32
}

func (r *countingRunner) Run(context.Context, string) (string, error) {
	atomic.AddInt32(&r.runs, 1)

	return "quantas horas foram apontadas hoje", nil
}

func TestRunVoiceRedeliveryHitsTranscriptCache(t *testing.T) {
	h := newHarness(t)

	runner := &countingRunner{}
	logger := zerolog.Nop()
	h.driver = NewDriver(
		h.tracker,
		&fakeChains{query: h.query, humanizer: h.humanizer},
		h.executor,
		transcribe.New(runner, 1, time.Hour, &logger),
		h.transcoder,
		h.synthesizer,
		h.client,
		h.audioDir,
		&logger,
	)

	msg := channel.Message{
		ID:        "chat-77",
		From:      "user-1",
		HasMedia:  true,
		MediaType: channel.MediaVoice,
		MediaRef:  "file-1",
	}

	// Same message delivered again after its record is long gone: the audio
	// lands on the same path, so the cached transcript is reused.
	for i := 0; i < 2; i++ {
		rec := h.tracker.Create(msg.From)
		h.driver.Run(context.Background(), rec, msg)
	}

	require.EqualValues(t, 1, atomic.LoadInt32(&runner.runs))
	require.Len(t, h.client.sentTexts(), 2)
	require.Zero(t, h.tracker.ActiveCount())
}

func TestMediaBasename(t *testing.T) {
	require.Equal(t, "123-45", mediaBasename("123-45"))
	require.Equal(t, "a_b_c_d", mediaBasename("a/b\\c:d"))
}

func TestRunMediaDownloadFailure(t *testing.T) {
	h := newHarness(t)
	h.client.mediaErr = errors.New("file gone")

	h.run("", true)

	require.Equal(t, []string{MsgGenericError}, h.client.sentTexts())
	require.Empty(t, h.query.inputs)
	require.Zero(t, h.tracker.ActiveCount())
}

func TestRunAudioOnlyDelivery(t *testing.T) {
	h := newHarness(t)

	h.run("$relatório mensal", false)

	require.Equal(t, "relatório mensal", h.query.inputs[0]["input"])
	require.Empty(t, h.client.sentTexts())
	require.Len(t, h.client.voices, 1)
	require.Equal(t, []byte("opus"), h.client.voices[0])
	require.Len(t, h.transcoder.oggCalls, 1)

	entries, err := os.ReadDir(h.audioDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunAudioAndTextDelivery(t *testing.T) {
	h := newHarness(t)

	h.run("&resumo da semana", false)

	require.Equal(t, []string{"Foram apontadas 12 horas hoje."}, h.client.sentTexts())
	require.Len(t, h.client.voices, 1)
}

func TestRunAudioOnlySynthesisFailureFallsBackToText(t *testing.T) {
	h := newHarness(t)
	h.synthesizer.err = errors.New("tts offline")

	h.run("$relatório", false)

	require.Equal(t, []string{MsgVoiceUnavailable}, h.client.sentTexts())
	require.Empty(t, h.client.voices)
	require.Zero(t, h.tracker.ActiveCount())
}
