package openai

import (
	"context"
	"errors"
	"os"

	goopenai "github.com/sashabaranov/go-openai"
)

const defaultModel = goopenai.GPT4oMini

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    string
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrNotConfigured = errors.New("openai: OPENAI_API_KEY is not set")

// Client is a thin completion wrapper around the OpenAI API.
type Client struct {
	api   *goopenai.Client
	model string
}

// NewFromEnv returns a configured client, or nil when OPENAI_API_KEY is
// missing (the chat endpoint then answers 500 for every call).
func NewFromEnv() *Client {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}
	return &Client{api: goopenai.NewClient(key), model: model}
}

// Complete sends the conversation history plus the new prompt and returns
// the assistant's reply.
func (c *Client) Complete(ctx context.Context, history []Message, prompt string) (string, error) {
	if c == nil || c.api == nil {
		return "", ErrNotConfigured
	}
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: prompt})

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
