package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	updateTimeout   = 60
	downloadTimeout = 2 * time.Minute
)

// Telegram adapts the Telegram Bot API to the Client interface.
type Telegram struct {
	api    *tgbotapi.BotAPI
	http   *http.Client
	logger *zerolog.Logger
}

func NewTelegram(token string, logger *zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	logger.Info().Str("username", api.Self.UserName).Msg("messaging session ready")

	return &Telegram{
		api:    api,
		http:   &http.Client{Timeout: downloadTimeout},
		logger: logger,
	}, nil
}

func (t *Telegram) Updates(ctx context.Context) (<-chan Message, error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeout

	updates := t.api.GetUpdatesChan(u)
	out := make(chan Message)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				t.api.StopReceivingUpdates()

				return
			case update := <-updates:
				if update.Message == nil {
					continue
				}

				select {
				case out <- fromTelegramMessage(update.Message):
				case <-ctx.Done():
					t.api.StopReceivingUpdates()

					return
				}
			}
		}
	}()

	return out, nil
}

func fromTelegramMessage(msg *tgbotapi.Message) Message {
	from := strconv.FormatInt(msg.Chat.ID, 10)

	out := Message{
		ID:   fmt.Sprintf("%s-%d", from, msg.MessageID),
		From: from,
		Body: msg.Text,
	}

	switch {
	case msg.Voice != nil:
		out.HasMedia = true
		out.MediaType = MediaVoice
		out.MediaRef = msg.Voice.FileID
	case msg.Audio != nil:
		out.HasMedia = true
		out.MediaType = MediaAudio
		out.MediaRef = msg.Audio.FileID
	}

	return out
}

func (t *Telegram) DownloadMedia(ctx context.Context, msg Message) ([]byte, error) {
	fileURL, err := t.api.GetFileDirectURL(msg.MediaRef)
	if err != nil {
		return nil, fmt.Errorf("resolve media url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download media: http status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (t *Telegram) SendText(_ context.Context, to, text string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", to, err)
	}

	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

func (t *Telegram) SendVoice(_ context.Context, to string, audio []byte) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", to, err)
	}

	voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{Name: "resposta.ogg", Bytes: audio})

	if _, err := t.api.Send(voice); err != nil {
		return fmt.Errorf("send voice: %w", err)
	}

	return nil
}
