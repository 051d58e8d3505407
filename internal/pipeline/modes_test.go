package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOutputMode(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		wantMode  OutputMode
		wantText  string
	}{
		{
			name:      "plain text",
			utterance: "quantas horas foram apontadas hoje",
			wantMode:  TextOnly,
			wantText:  "quantas horas foram apontadas hoje",
		},
		{
			name:      "audio only sigil",
			utterance: "$relatório mensal",
			wantMode:  AudioOnly,
			wantText:  "relatório mensal",
		},
		{
			name:      "audio and text sigil",
			utterance: "&resumo da semana",
			wantMode:  AudioAndText,
			wantText:  "resumo da semana",
		},
		{
			name:      "sigil with surrounding whitespace",
			utterance: "  $  total de registros  ",
			wantMode:  AudioOnly,
			wantText:  "total de registros",
		},
		{
			name:      "sigil not leading",
			utterance: "valor em $ do contrato",
			wantMode:  TextOnly,
			wantText:  "valor em $ do contrato",
		},
		{
			name:      "bare sigil",
			utterance: "&",
			wantMode:  AudioAndText,
			wantText:  "",
		},
		{
			name:      "empty utterance",
			utterance: "   ",
			wantMode:  TextOnly,
			wantText:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, text := ParseOutputMode(tt.utterance)
			require.Equal(t, tt.wantMode, mode)
			require.Equal(t, tt.wantText, text)
		})
	}
}

func TestOutputModeString(t *testing.T) {
	require.Equal(t, "text", TextOnly.String())
	require.Equal(t, "audio", AudioOnly.String())
	require.Equal(t, "audio+text", AudioAndText.String())
}
