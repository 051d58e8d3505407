package pipeline

import "strings"

// OutputMode selects how the final answer is delivered.
type OutputMode int

const (
	// TextOnly sends the humanized answer as a text message.
	TextOnly OutputMode = iota
	// AudioOnly synthesizes the answer and sends only the voice note.
	AudioOnly
	// AudioAndText sends both the voice note and the text.
	AudioAndText
)

func (m OutputMode) String() string {
	switch m {
	case AudioOnly:
		return "audio"
	case AudioAndText:
		return "audio+text"
	default:
		return "text"
	}
}

// Sigils selecting the output mode when they lead the utterance.
const (
	sigilAudioOnly    = '$'
	sigilAudioAndText = '&'
)

// ParseOutputMode strips an optional leading sigil from the utterance and
// returns the selected delivery mode with the remaining text.
func ParseOutputMode(utterance string) (OutputMode, string) {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return TextOnly, trimmed
	}

	switch trimmed[0] {
	case sigilAudioOnly:
		return AudioOnly, strings.TrimSpace(trimmed[1:])
	case sigilAudioAndText:
		return AudioAndText, strings.TrimSpace(trimmed[1:])
	}

	return TextOnly, trimmed
}
