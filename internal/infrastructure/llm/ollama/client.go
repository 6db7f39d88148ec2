package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/lease-lens/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// CompleteJSON asks the model for a JSON object using Ollama's chat endpoint.
func (c *Client) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	request := chatRequest{
		Model:  c.model,
		Stream: false,
		Format: "json",
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Options: map[string]any{"temperature": 0.1},
	}

	response, err := resilience.ExecuteValue(ctx, c.executor, resilience.OpOllamaChat, func(ctx context.Context) (chatResponse, error) {
		var out chatResponse
		err := c.postJSON(ctx, "/api/chat", request, &out, "chat")
		return out, err
	}, classifyOllamaError)
	if err != nil {
		return "", resilience.WrapTemporary("ollama chat", err, classifyOllamaError)
	}
	return strings.TrimSpace(response.Message.Content), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}
