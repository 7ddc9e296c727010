package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider uses Google's first-party genai client. The system prompt
// travels as the chat's system instruction and generation is triggered by an
// empty trailing user turn, since the user message is already in history.
type GeminiProvider struct {
	client *lazy[*genai.Client]
}

// NewGeminiProvider builds a provider whose genai client is created once on
// first use. baseURL overrides the API endpoint and is empty in production.
func NewGeminiProvider(apiKey, baseURL string) *GeminiProvider {
	return &GeminiProvider{
		client: newLazy(func() (*genai.Client, error) {
			if strings.TrimSpace(apiKey) == "" {
				return nil, fmt.Errorf("%w: %s", ErrMissingCredential, FamilyGoogle)
			}
			cc := &genai.ClientConfig{
				APIKey:  apiKey,
				Backend: genai.BackendGeminiAPI,
			}
			if baseURL != "" {
				cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
			}
			return genai.NewClient(context.Background(), cc)
		}),
	}
}

func (p *GeminiProvider) Family() Family { return FamilyGoogle }

func (p *GeminiProvider) Ready() error {
	_, err := p.client.get()
	return err
}

func geminiHistory(history []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

func geminiConfig(systemPrompt string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	return cfg
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Family: FamilyGoogle, Status: apiErr.Code, Message: apiErr.Message}
	}
	return err
}

func (p *GeminiProvider) Chat(ctx context.Context, req Request) (string, error) {
	client, err := p.client.get()
	if err != nil {
		return "", err
	}
	contents := geminiHistory(req.History)
	if len(contents) == 0 {
		return "", errors.New("google: empty prompt")
	}
	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, geminiConfig(req.SystemPrompt))
	if err != nil {
		return "", geminiError(err)
	}
	return resp.Text(), nil
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (DeltaStream, error) {
	client, err := p.client.get()
	if err != nil {
		return nil, err
	}
	session, err := client.Chats.Create(ctx, req.Model, geminiConfig(req.SystemPrompt), geminiHistory(req.History))
	if err != nil {
		return nil, geminiError(err)
	}
	next, stop := iter.Pull2(session.SendMessageStream(ctx, genai.Part{Text: ""}))
	return &geminiStream{next: next, stop: stop}, nil
}

type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (s *geminiStream) Recv() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", geminiError(err)
		}
		if resp == nil {
			continue
		}
		if text := resp.Text(); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error {
	s.stop()
	return nil
}
