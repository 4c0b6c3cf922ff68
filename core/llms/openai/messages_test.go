package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jiroshimaya/fastvoicechat/core/llms"
)

func TestToOpenAIMessagesKeepsHistoryOrderAndSkipsEmpty(t *testing.T) {
	history := []llms.Message{
		llms.UserMessage("こんにちは"),
		llms.AssistantMessage(""),
		llms.AssistantMessage("うん"),
	}

	messages := toOpenAIMessages("instructions", history, "元気？")

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(messages), messages)
	}
	if messages[0].Role != messageRoleDeveloper || messages[0].Content != "instructions" {
		t.Fatalf("unexpected instructions message: %+v", messages[0])
	}
	if messages[1].Role != messageRoleUser || messages[1].Content != "こんにちは" {
		t.Fatalf("unexpected history message: %+v", messages[1])
	}
	if messages[2].Role != messageRoleAssistant || messages[2].Content != "うん" {
		t.Fatalf("unexpected assistant message: %+v", messages[2])
	}
	if messages[3].Role != messageRoleUser || messages[3].Content != "元気？" {
		t.Fatalf("unexpected prompt message: %+v", messages[3])
	}
}

func TestToOpenAIMessagesOmitsEmptyPrompt(t *testing.T) {
	messages := toOpenAIMessages("", []llms.Message{llms.UserMessage("質問"), llms.AssistantMessage("えーっと")}, "")
	if len(messages) != 2 || messages[1].Role != messageRoleAssistant {
		t.Fatalf("expected history to end with the assistant message, got %+v", messages)
	}
}

func TestPromptWithStreamYieldsTextDeltas(t *testing.T) {
	var received requestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&received)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"そう", "ですね", "。"} {
			fmt.Fprintf(w, "event: response.output_text.delta\ndata: {\"delta\":%q}\n\n", delta)
		}
		fmt.Fprint(w, "event: response.completed\ndata: {\"response\":{\"usage\":{\"input_tokens\":3,\"output_tokens\":4,\"total_tokens\":7}}}\n\n")
	}))
	defer server.Close()

	client := NewClient("gpt-4o", WithAPIKey("test-key"), WithEndpoint(server.URL))
	stream := client.PromptWithStream(context.Background(), "質問", llms.WithSystemPrompt("sys"))

	var content string
	var usage *llms.Usage
	for chunk, err := range stream.Chunks(context.Background()) {
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		switch chunk := chunk.(type) {
		case llms.StreamContentChunk:
			content += chunk.Content()
		case llms.StreamUsageChunk:
			u := chunk.Usage()
			usage = &u
		}
	}

	if content != "そうですね。" {
		t.Fatalf("expected streamed content, got %q", content)
	}
	if usage == nil || usage.TotalTokens != 7 {
		t.Fatalf("expected usage with 7 total tokens, got %+v", usage)
	}
	if received.Model != "gpt-4o" || !received.Stream || len(received.Input) != 2 {
		t.Fatalf("unexpected request body: %+v", received)
	}
}

func TestPromptWithStreamReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("gpt-4o", WithAPIKey("test-key"), WithEndpoint(server.URL))
	_, err := llms.Collect(context.Background(), client.PromptWithStream(context.Background(), "質問"))
	if err == nil {
		t.Fatalf("expected an error for a 429 response")
	}
}
