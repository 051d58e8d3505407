package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	BotToken    string `env:"BOT_TOKEN,required"`

	// LLM backend (OpenAI-compatible HTTP endpoint, e.g. Ollama).
	LLMBaseURL     string `env:"LLM_BASE_URL" envDefault:"http://localhost:11434/v1"`
	LLMAPIKey      string `env:"LLM_API_KEY" envDefault:"mock"`
	QueryModel     string `env:"QUERY_MODEL" envDefault:"qwen2.5-coder:32b"`
	HumanizerModel string `env:"HUMANIZER_MODEL" envDefault:"gptHumanizador3b"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"mxbai-embed-large"`
	RateLimitRPS   int    `env:"RATE_LIMIT_RPS" envDefault:"1"`

	// Retrieval corpora. The query chain reads the view schema document,
	// the humanizer chain reads the behaviour document.
	SchemaCorpusPath    string `env:"SCHEMA_CORPUS_PATH" envDefault:"./corpora/view_apontamentos.txt"`
	BehaviorCorpusPath  string `env:"BEHAVIOR_CORPUS_PATH" envDefault:"./corpora/comportamento.txt"`
	ChunkSize           int    `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap        int    `env:"CHUNK_OVERLAP" envDefault:"0"`
	RetrievalK          int    `env:"RETRIEVAL_K" envDefault:"4"`
	RetrievalSearchMode string `env:"RETRIEVAL_SEARCH_MODE" envDefault:"similarity"`

	// External transcription process.
	TranscriberInterpreter string        `env:"TRANSCRIBER_INTERPRETER" envDefault:"python3"`
	TranscriberScript      string        `env:"TRANSCRIBER_SCRIPT" envDefault:"./transcribe.py"`
	TranscribeConcurrency  int           `env:"TRANSCRIBE_CONCURRENCY" envDefault:"5"`
	TranscriptionCacheTTL  time.Duration `env:"TRANSCRIPTION_CACHE_TTL" envDefault:"1h"`

	// Audio handling.
	FfmpegPath string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	AudioDir   string `env:"AUDIO_DIR" envDefault:"./audios"`

	// Speech synthesis service.
	TTSBaseURL  string `env:"TTS_BASE_URL"`
	TTSVoice    string `env:"TTS_VOICE" envDefault:"male_03.wav"`
	TTSLanguage string `env:"TTS_LANGUAGE" envDefault:"pt"`

	// Inbound message dedup window.
	DedupTTL time.Duration `env:"DEDUP_TTL" envDefault:"5m"`

	// RequestTTL expires stale request records that were never cancelled
	// nor finalized. Zero disables the sweep.
	RequestTTL time.Duration `env:"REQUEST_TTL" envDefault:"0"`

	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`

	DBConnectRetries int           `env:"DB_CONNECT_RETRIES" envDefault:"5"`
	DBConnectDelay   time.Duration `env:"DB_CONNECT_DELAY" envDefault:"5s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
