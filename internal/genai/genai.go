// Package genai provides the language-model collaborators for ZapGenda
// using the OpenAI API: intent classification, booking/cancellation detail
// extraction, FAQ answers and conversation summarization.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zapgenda/zapgenda/internal/models"
)

// ErrNoChoicesReturned indicates the model returned an empty choice list.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChat adapts the OpenAI client to chatService.
type openaiChat struct {
	client openai.Client
}

func (c openaiChat) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key (overrides $OPENAI_API_KEY).
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model used for all operations.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// BookingDetails holds the raw fields the extractor pulls from a booking
// utterance. Empty fields mean the client did not provide them.
type BookingDetails struct {
	Service string `json:"servico"`
	Date    string `json:"data"`
	Hour    string `json:"hora"`
	Barber  string `json:"nome_barbeiro"`
}

// Client wraps OpenAI chat completions for the conversational agents.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes the GenAI client. The API key comes from options or
// the OPENAI_API_KEY environment variable; a missing key is a startup
// failure.
func NewClient(opts ...Option) (*Client, error) {
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
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	slog.Debug("GenAI client configured", "model", cfg.Model, "api_key_set", true)

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: openaiChat{client: cli}, model: cfg.Model}, nil
}

// complete runs one system+user chat completion and returns the trimmed
// message content.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(512),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Classify determines the intent of a client utterance. It never fails:
// classifier errors and unrecognized labels degrade to IntentOther.
func (c *Client) Classify(ctx context.Context, text string) models.Intent {
	out, err := c.complete(ctx, receptionistPrompt, text)
	if err != nil {
		slog.Error("GenAI Classify failed, defaulting to outro", "error", err)
		return models.IntentOther
	}

	intent := models.Intent(strings.ToLower(strings.TrimSpace(out)))
	if !models.IsValidIntent(intent) {
		slog.Warn("GenAI Classify returned unrecognized label, defaulting to outro", "label", out)
		return models.IntentOther
	}
	slog.Debug("GenAI Classify succeeded", "intent", intent)
	return intent
}

// ExtractBooking pulls service, date, hour and barber from a booking
// utterance. Fields the client did not mention come back empty.
func (c *Client) ExtractBooking(ctx context.Context, text string) (BookingDetails, error) {
	out, err := c.complete(ctx, bookingExtractionPrompt, text)
	if err != nil {
		return BookingDetails{}, fmt.Errorf("booking extraction failed: %w", err)
	}

	var details BookingDetails
	if err := json.Unmarshal([]byte(stripJSONFences(out)), &details); err != nil {
		slog.Error("GenAI ExtractBooking returned unparseable JSON", "error", err, "output_length", len(out))
		return BookingDetails{}, fmt.Errorf("booking extraction returned invalid JSON: %w", err)
	}
	slog.Debug("GenAI ExtractBooking succeeded",
		"service_set", details.Service != "", "date_set", details.Date != "", "hour_set", details.Hour != "")
	return details, nil
}

// ExtractCancellation pulls name, service and date from a cancellation
// utterance.
func (c *Client) ExtractCancellation(ctx context.Context, text string) (models.CancellationRequest, error) {
	out, err := c.complete(ctx, cancellationExtractionPrompt, text)
	if err != nil {
		return models.CancellationRequest{}, fmt.Errorf("cancellation extraction failed: %w", err)
	}

	var req models.CancellationRequest
	if err := json.Unmarshal([]byte(stripJSONFences(out)), &req); err != nil {
		slog.Error("GenAI ExtractCancellation returned unparseable JSON", "error", err)
		return models.CancellationRequest{}, fmt.Errorf("cancellation extraction returned invalid JSON: %w", err)
	}
	return req, nil
}

// AnswerFAQ answers a shop question grounded in the service catalog summary.
func (c *Client) AnswerFAQ(ctx context.Context, question, servicesSummary string) (string, error) {
	system := fmt.Sprintf(faqPrompt, servicesSummary)
	answer, err := c.complete(ctx, system, question)
	if err != nil {
		return "", fmt.Errorf("FAQ answer failed: %w", err)
	}
	return answer, nil
}

// Summarize condenses one exchange into a single line for conversational
// memory. On failure the raw user input is returned as the summary, so the
// caller always has something to persist.
func (c *Client) Summarize(ctx context.Context, userInput, agentResponse string) string {
	user := fmt.Sprintf("Cliente: %s\nAtendente: %s", userInput, agentResponse)
	out, err := c.complete(ctx, summarizationPrompt, user)
	if err != nil {
		slog.Warn("GenAI Summarize failed, using raw input as summary", "error", err)
		return userInput
	}
	return out
}

// stripJSONFences removes markdown code fences the model sometimes wraps
// around JSON output.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
