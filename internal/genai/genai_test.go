package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/zapgenda/zapgenda/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp openai.ChatCompletion
	err  error
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	return m.resp, m.err
}

func chatReply(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]models.Intent{
		"agendar":       models.IntentBook,
		"  Cancelar  ":  models.IntentCancel,
		"FAQ":           models.IntentFAQ,
		"ativar":        models.IntentActivate,
		"desativar":     models.IntentDeactivate,
		"outro":         models.IntentOther,
		"agendamento??": models.IntentOther, // unrecognized label degrades
	}
	for label, want := range cases {
		client := &Client{chat: &mockChatService{resp: chatReply(label)}}
		if got := client.Classify(context.Background(), "qualquer coisa"); got != want {
			t.Errorf("Classify with label %q = %q, want %q", label, got, want)
		}
	}
}

func TestClassifyServiceFailureDefaultsToOther(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("rate limited")}}
	if got := client.Classify(context.Background(), "oi"); got != models.IntentOther {
		t.Errorf("Classify on failure = %q, want outro", got)
	}
}

func TestClassifyEmptyChoicesDefaultsToOther(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}
	if got := client.Classify(context.Background(), "oi"); got != models.IntentOther {
		t.Errorf("Classify with no choices = %q, want outro", got)
	}
}

func TestExtractBooking(t *testing.T) {
	body := `{"servico": "corte", "data": "01/08/2025", "hora": "14:00", "nome_barbeiro": "Gabriel"}`
	client := &Client{chat: &mockChatService{resp: chatReply(body)}}

	details, err := client.ExtractBooking(context.Background(), "quero um corte amanhã às 14h com o Gabriel")
	if err != nil {
		t.Fatalf("ExtractBooking failed: %v", err)
	}
	if details.Service != "corte" || details.Date != "01/08/2025" || details.Hour != "14:00" || details.Barber != "Gabriel" {
		t.Errorf("unexpected details: %+v", details)
	}
}

func TestExtractBookingStripsFences(t *testing.T) {
	body := "```json\n{\"servico\": \"barba\", \"data\": \"\", \"hora\": \"\", \"nome_barbeiro\": \"\"}\n```"
	client := &Client{chat: &mockChatService{resp: chatReply(body)}}

	details, err := client.ExtractBooking(context.Background(), "quero fazer a barba")
	if err != nil {
		t.Fatalf("ExtractBooking failed: %v", err)
	}
	if details.Service != "barba" || details.Hour != "" {
		t.Errorf("unexpected details: %+v", details)
	}
}

func TestExtractBookingInvalidJSON(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: chatReply("não entendi")}}
	if _, err := client.ExtractBooking(context.Background(), "x"); err == nil {
		t.Error("expected error for unparseable extraction output")
	}
}

func TestExtractCancellation(t *testing.T) {
	body := `{"nome_completo": "João Silva", "servico": "corte", "data_agendamento": "02/08/2025"}`
	client := &Client{chat: &mockChatService{resp: chatReply(body)}}

	req, err := client.ExtractCancellation(context.Background(), "quero cancelar meu corte de sexta, João Silva")
	if err != nil {
		t.Fatalf("ExtractCancellation failed: %v", err)
	}
	if req.FullName != "João Silva" || req.Date != "02/08/2025" {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestAnswerFAQ(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: chatReply("O corte custa R$45 e leva 40 minutos.")}}
	answer, err := client.AnswerFAQ(context.Background(), "quanto custa o corte?", "Corte (R$45, 40min)")
	if err != nil {
		t.Fatalf("AnswerFAQ failed: %v", err)
	}
	if !strings.Contains(answer, "R$45") {
		t.Errorf("unexpected answer: %q", answer)
	}
}

func TestAnswerFAQPropagatesError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	if _, err := client.AnswerFAQ(context.Background(), "horários?", ""); err == nil {
		t.Error("expected error from failing chat service")
	}
}

func TestSummarizeFallsBackToRawInput(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("down")}}
	got := client.Summarize(context.Background(), "quero agendar um corte", "Agendado!")
	if got != "quero agendar um corte" {
		t.Errorf("fallback summary = %q, want raw input", got)
	}
}

func TestSummarize(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: chatReply("Cliente agendou corte para sexta 14:00.")}}
	got := client.Summarize(context.Background(), "quero um corte sexta às 14h", "Confirmado!")
	if got != "Cliente agendou corte para sexta 14:00." {
		t.Errorf("summary = %q", got)
	}
}

func TestNewClientNoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error when API key not provided")
	}
}

func TestNewClientWithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o-mini"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Fatal("expected client instance")
	}
}

func TestStripJSONFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":               "{\"a\":1}",
		"```json\n{\"a\":1}\n```": "{\"a\":1}",
		"```\n{\"a\":1}\n```":     "{\"a\":1}",
		"  \n{\"a\":1}\n  ":       "{\"a\":1}",
	}
	for in, want := range cases {
		if got := stripJSONFences(in); got != want {
			t.Errorf("stripJSONFences(%q) = %q, want %q", in, got, want)
		}
	}
}
