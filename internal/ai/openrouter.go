package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// OpenRouterProvider talks to the OpenRouter gateway over plain HTTP and
// parses its server-sent-event stream by hand.
type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	SiteURL string
	AppName string
	Client  *http.Client
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatReq struct {
	Model    string          `json:"model"`
	Messages []openRouterMsg `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openRouterError struct {
	Message string `json:"message"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message openRouterMsg `json:"message"`
	} `json:"choices"`
	Error *openRouterError `json:"error,omitempty"`
}

type openRouterStreamResp struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *openRouterError `json:"error,omitempty"`
}

func NewOpenRouterProvider(baseURL, apiKey, siteURL, appName string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		SiteURL: siteURL,
		AppName: appName,
		// no global timeout; the request context bounds a stream
		Client: &http.Client{},
	}
}

func (p *OpenRouterProvider) Family() Family { return FamilyOpenRouter }

// openAIStyleMessages prepends the system prompt as a synthetic leading message.
func openAIStyleMessages(req Request) []openRouterMsg {
	out := make([]openRouterMsg, 0, len(req.History)+1)
	if req.SystemPrompt != "" {
		out = append(out, openRouterMsg{Role: RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.History {
		out = append(out, openRouterMsg{Role: m.Role, Content: m.Content})
	}
	return out
}

func (p *OpenRouterProvider) Ready() error {
	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("%w: %s", ErrMissingCredential, FamilyOpenRouter)
	}
	return nil
}

func (p *OpenRouterProvider) do(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	if p.Client == nil {
		return nil, errors.New("openrouter: http client is nil")
	}
	if err := p.Ready(); err != nil {
		return nil, err
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return nil, errors.New("openrouter: model is required")
	}

	b, err := json.Marshal(openRouterChatReq{
		Model:    model,
		Messages: openAIStyleMessages(req),
		Stream:   stream,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		httpReq.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		httpReq.Header.Set("X-Title", p.AppName)
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &UpstreamError{Family: FamilyOpenRouter, Status: resp.StatusCode, Message: msg}
	}
	return resp, nil
}

func (p *OpenRouterProvider) Chat(ctx context.Context, req Request) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	resp, err := p.do(cctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", &UpstreamError{Family: FamilyOpenRouter, Message: decoded.Error.Message}
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openrouter: empty response")
	}
	return decoded.Choices[0].Message.Content, nil
}

func (p *OpenRouterProvider) Stream(ctx context.Context, req Request) (DeltaStream, error) {
	resp, err := p.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 2*1024*1024)
	return &sseStream{body: resp.Body, sc: sc}, nil
}

const sseDataPrefix = "data: "

// sseStream reads an OpenAI-style SSE body. The scanner reassembles lines
// split across network reads, so a payload is only parsed once its line is
// complete; a line that still fails to parse is logged and dropped.
type sseStream struct {
	body io.ReadCloser
	sc   *bufio.Scanner
}

func (s *sseStream) Recv() (string, error) {
	for s.sc.Scan() {
		line := strings.TrimRight(s.sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		data := line[len(sseDataPrefix):]
		if data == "[DONE]" {
			continue
		}

		var decoded openRouterStreamResp
		if err := json.Unmarshal([]byte(data), &decoded); err != nil {
			log.Debug().Err(err).Str("component", "openrouter").Int("len", len(data)).Msg("dropping malformed sse payload")
			continue
		}
		if decoded.Error != nil && decoded.Error.Message != "" {
			return "", &UpstreamError{Family: FamilyOpenRouter, Message: decoded.Error.Message}
		}
		if len(decoded.Choices) == 0 {
			continue
		}
		if delta := decoded.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
