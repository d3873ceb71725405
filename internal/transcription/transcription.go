// Package transcription converts inbound voice notes to text using the
// OpenAI Whisper API.
//
// Audio messages bypass the debouncer: each one is transcribed
// synchronously and treated as a complete utterance.
package transcription

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zapgenda/zapgenda/internal/models"
)

// DefaultLanguage is the language hint passed to the transcription model.
const DefaultLanguage = "pt"

// audioService defines the minimal interface for audio transcriptions.
type audioService interface {
	Create(ctx context.Context, params openai.AudioTranscriptionNewParams) (openai.Transcription, error)
}

// openaiAudio adapts the OpenAI client to audioService.
type openaiAudio struct {
	client openai.Client
}

func (a openaiAudio) Create(ctx context.Context, params openai.AudioTranscriptionNewParams) (openai.Transcription, error) {
	resp, err := a.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return openai.Transcription{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the transcription service.
type Opts struct {
	APIKey   string
	Language string
}

// Option defines a configuration option for the transcription service.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key (overrides $OPENAI_API_KEY).
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithLanguage overrides the language hint.
func WithLanguage(lang string) Option {
	return func(o *Opts) { o.Language = lang }
}

// Service transcribes voice notes.
type Service struct {
	audio    audioService
	language string
}

// NewService initializes the transcription service.
func NewService(opts ...Option) (*Service, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Service{audio: openaiAudio{client: cli}, language: cfg.Language}, nil
}

// Transcribe converts an audio message to text. The message must carry the
// downloaded audio bytes.
func (s *Service) Transcribe(ctx context.Context, msg models.Message) (string, error) {
	if len(msg.Audio) == 0 {
		return "", fmt.Errorf("audio message from %s has no payload", msg.SenderKey)
	}

	params := openai.AudioTranscriptionNewParams{
		Model:    openai.AudioModelWhisper1,
		File:     bytes.NewReader(msg.Audio),
		Language: openai.String(s.language),
	}

	resp, err := s.audio.Create(ctx, params)
	if err != nil {
		slog.Error("Transcription failed", "error", err, "from", msg.SenderKey, "bytes", len(msg.Audio))
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	slog.Debug("Transcription succeeded", "from", msg.SenderKey, "text_length", len(text))
	return text, nil
}
