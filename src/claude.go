package storybook

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const claudeAttempts = 5

type ClaudeClient struct {
	client *anthropic.Client
}

func NewClaudeClient(apiKey string) *ClaudeClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &ClaudeClient{client: client}
}

func (c *ClaudeClient) SendMessage(systemPrompt, userPrompt string) (string, error) {
	ctx := context.Background()
	var (
		message *anthropic.Message
		err     error
	)
	for tries := 1; ; tries++ {
		message, err = c.client.Messages.New(
			ctx,
			anthropic.MessageNewParams{
				Model:     anthropic.F(anthropic.ModelClaude3_5SonnetLatest),
				MaxTokens: anthropic.F(int64(4096)),
				System: anthropic.F([]anthropic.TextBlockParam{
					anthropic.NewTextBlock(systemPrompt),
				}),
				Messages: anthropic.F([]anthropic.MessageParam{
					anthropic.NewUserMessage(
						anthropic.NewTextBlock(userPrompt),
					),
				}),
			},
		)
		if err == nil {
			break
		}
		if tries >= claudeAttempts {
			return "", fmt.Errorf("claude api error: %w", err)
		}
		time.Sleep(time.Duration(tries) * time.Second)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("empty response from claude")
	}

	return message.Content[0].Text, nil
}
