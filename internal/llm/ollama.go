package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"veldora.quest/internal/protocol"
)

const defaultBaseURL = "http://localhost:11434"

// Ollama exchanges chat histories with a local Ollama server using the
// official SDK, non-streaming.
type Ollama struct {
	client *api.Client
	model  string
}

func NewOllama(baseURL, model string) (*Ollama, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama base url: %w", err)
	}
	if model == "" {
		return nil, fmt.Errorf("ollama: empty model")
	}
	httpClient := &http.Client{
		// Local inference can be slow; the transport timeout is the only
		// timeout in the pipeline.
		Timeout: 5 * time.Minute,
	}
	return &Ollama{client: api.NewClient(u, httpClient), model: model}, nil
}

func (o *Ollama) Exchange(ctx context.Context, history []protocol.ChatMessage) (protocol.ChatMessage, error) {
	messages := make([]api.Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, api.Message{Role: m.Role, Content: m.Content})
	}
	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
	}

	var reply protocol.ChatMessage
	got := false
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply = protocol.ChatMessage{Role: resp.Message.Role, Content: resp.Message.Content}
		got = true
		return nil
	})
	if err != nil {
		return protocol.ChatMessage{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !got || reply.Role == "" {
		return protocol.ChatMessage{}, fmt.Errorf("%w: empty chat response", ErrUnavailable)
	}
	return reply, nil
}
