package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient("  ", ""); err == nil {
		t.Fatal("expected error for blank api key")
	}
}

func TestComplete_SerializesTemperature(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "  ok  "}},
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL
	client := &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: openai.GPT4oMini}

	answer, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if answer != "ok" {
		t.Errorf("answer = %q, want trimmed %q", answer, "ok")
	}

	temp, present := body["temperature"]
	if !present {
		t.Fatal("temperature missing from request body")
	}
	tf, ok := temp.(float64)
	if !ok {
		t.Fatalf("temperature has type %T, want number", temp)
	}
	if tf < 0 || tf > 1e-6 {
		t.Errorf("temperature = %v, want effectively zero", tf)
	}
}
