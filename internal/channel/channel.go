// Package channel abstracts the messaging surface the assistant lives on.
// The pipeline only sees this interface; the shipped implementation is the
// Telegram adapter.
package channel

import "context"

// MediaType classifies inbound media.
type MediaType string

const (
	MediaNone  MediaType = ""
	MediaAudio MediaType = "audio"
	MediaVoice MediaType = "ptt"
)

// Message is one inbound event from the channel.
type Message struct {
	ID        string
	From      string
	Body      string
	HasMedia  bool
	MediaType MediaType

	// MediaRef is the channel-specific handle used by DownloadMedia.
	MediaRef string
}

// IsVoice reports whether the message carries transcribable audio.
func (m Message) IsVoice() bool {
	return m.HasMedia && (m.MediaType == MediaAudio || m.MediaType == MediaVoice)
}

// Client is the messaging-channel collaborator.
type Client interface {
	// Updates returns the inbound message stream. The channel is closed
	// when ctx is cancelled.
	Updates(ctx context.Context) (<-chan Message, error)

	// DownloadMedia fetches the media bytes attached to msg.
	DownloadMedia(ctx context.Context, msg Message) ([]byte, error)

	// SendText delivers a text reply.
	SendText(ctx context.Context, to, text string) error

	// SendVoice delivers ogg/opus audio as a voice note.
	SendVoice(ctx context.Context, to string, audio []byte) error
}
