// Package tts synthesizes speech through an AllTalk-compatible HTTP
// service: a form POST generates the audio server-side and returns a URL,
// a follow-up GET fetches the WAV bytes.
package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	generatePath   = "/api/tts-generate"
	statusSuccess  = "generate-success"
	requestTimeout = 2 * time.Minute
)

var ErrGenerationFailed = errors.New("speech generation failed")

type Client struct {
	baseURL  string
	voice    string
	language string
	http     *http.Client
	logger   *zerolog.Logger
}

func New(baseURL, voice, language string, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		voice:    voice,
		language: language,
		http:     &http.Client{Timeout: requestTimeout},
		logger:   logger,
	}
}

type generateResponse struct {
	Status        string `json:"status"`
	OutputFileURL string `json:"output_file_url"`
}

// Synthesize returns WAV bytes for the given text. Periods become
// semicolons before synthesis; the voice model pauses more naturally on
// them.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	form := url.Values{}
	form.Set("text_input", strings.ReplaceAll(text, ".", ";"))
	form.Set("text_filtering", "standard")
	form.Set("character_voice_gen", c.voice)
	form.Set("narrator_enabled", "false")
	form.Set("text_not_inside", "character")
	form.Set("narrator_voice_gen", c.voice)
	form.Set("language", c.language)
	form.Set("output_file_name", "ttsaudio")
	form.Set("output_file_timestamp", "true")
	form.Set("autoplay", "false")
	form.Set("autoplay_volume", "1.0")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts generate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, fmt.Errorf("decode tts response: %w", err)
	}

	if gen.Status != statusSuccess {
		return nil, fmt.Errorf("%w: status %q", ErrGenerationFailed, gen.Status)
	}

	c.logger.Debug().Str("url", gen.OutputFileURL).Msg("speech generated")

	return c.download(ctx, gen.OutputFileURL)
}

func (c *Client) download(ctx context.Context, audioURL string) ([]byte, error) {
	// The service may return a path relative to its own host.
	if strings.HasPrefix(audioURL, "/") {
		audioURL = c.baseURL + audioURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build audio download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download audio: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: audio download status %d", ErrGenerationFailed, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
