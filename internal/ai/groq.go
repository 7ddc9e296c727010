package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// GroqProvider uses the OpenAI SDK against Groq's OpenAI-compatible API.
type GroqProvider struct {
	client *lazy[*openai.Client]
}

func NewGroqProvider(baseURL, apiKey string) *GroqProvider {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	return &GroqProvider{
		client: newLazy(func() (*openai.Client, error) {
			if strings.TrimSpace(apiKey) == "" {
				return nil, fmt.Errorf("%w: %s", ErrMissingCredential, FamilyGroq)
			}
			cfg := openai.DefaultConfig(apiKey)
			cfg.BaseURL = baseURL
			return openai.NewClientWithConfig(cfg), nil
		}),
	}
}

func (p *GroqProvider) Family() Family { return FamilyGroq }

func (p *GroqProvider) Ready() error {
	_, err := p.client.get()
	return err
}

func groqMessages(req Request) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	for _, m := range req.History {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func groqError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Family: FamilyGroq, Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamError{Family: FamilyGroq, Status: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return err
}

func (p *GroqProvider) Chat(ctx context.Context, req Request) (string, error) {
	client, err := p.client.get()
	if err != nil {
		return "", err
	}
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: groqMessages(req),
	})
	if err != nil {
		return "", groqError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("groq: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *GroqProvider) Stream(ctx context.Context, req Request) (DeltaStream, error) {
	client, err := p.client.get()
	if err != nil {
		return nil, err
	}
	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: groqMessages(req),
		Stream:   true,
	})
	if err != nil {
		return nil, groqError(err)
	}
	return &groqStream{stream: stream}, nil
}

type groqStream struct {
	stream *openai.ChatCompletionStream
}

func (s *groqStream) Recv() (string, error) {
	for {
		chunk, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", groqError(err)
		}
		// metadata-only chunks carry no choices or an empty delta
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *groqStream) Close() error {
	return s.stream.Close()
}
