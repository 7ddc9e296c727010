package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

// Entry is one message as the client shows it.
type Entry struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ModelID   *string   `json:"modelId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type StreamOptions struct {
	ModelID   string `json:"modelId,omitempty"`
	WebSearch bool   `json:"webSearch"`
}

// API is the server surface the conversation needs.
type API interface {
	CreateTurn(ctx context.Context, chatID, content string) (user Entry, model Entry, err error)
	StreamTurn(ctx context.Context, chatID, messageID string, opts StreamOptions, onChunk func(string)) error
	GenerateTitle(ctx context.Context, chatID string) (string, error)
}

// APIError is a non-2xx reply carrying the server's envelope.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d code %d: %s", e.Status, e.Code, e.Message)
}

type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type HTTPClient struct {
	rc *resty.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		rc.SetAuthToken(token)
	}
	return &HTTPClient{rc: rc}
}

func (c *HTTPClient) SetToken(token string) { c.rc.SetAuthToken(token) }

func call[T any](ctx context.Context, c *HTTPClient, method, path string, body any) (T, error) {
	var out envelope[T]
	var fail envelope[any]
	req := c.rc.R().SetContext(ctx).SetResult(&out).SetError(&fail)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return out.Data, err
	}
	if resp.IsError() {
		return out.Data, &APIError{Status: resp.StatusCode(), Code: fail.Code, Message: fail.Message}
	}
	return out.Data, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	out, err := call[struct {
		Token string `json:"token"`
	}](ctx, c, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	c.SetToken(out.Token)
	return out.Token, nil
}

func (c *HTTPClient) CreateChat(ctx context.Context, title, modelID string) (Chat, error) {
	out, err := call[struct {
		Chat Chat `json:"chat"`
	}](ctx, c, http.MethodPost, "/chats", map[string]string{"title": title, "modelId": modelID})
	return out.Chat, err
}

func (c *HTTPClient) ListChats(ctx context.Context) ([]Chat, error) {
	out, err := call[struct {
		Chats []Chat `json:"chats"`
	}](ctx, c, http.MethodGet, "/chats", nil)
	return out.Chats, err
}

func (c *HTTPClient) ListMessages(ctx context.Context, chatID string) ([]Entry, error) {
	out, err := call[struct {
		Messages []Entry `json:"messages"`
	}](ctx, c, http.MethodGet, "/chats/"+chatID+"/messages", nil)
	return out.Messages, err
}

func (c *HTTPClient) CreateTurn(ctx context.Context, chatID, content string) (Entry, Entry, error) {
	out, err := call[struct {
		UserMessage Entry `json:"userMessage"`
		AIMessage   Entry `json:"aiMessage"`
	}](ctx, c, http.MethodPost, "/chats/"+chatID+"/messages", map[string]string{"content": content})
	return out.UserMessage, out.AIMessage, err
}

func (c *HTTPClient) GenerateTitle(ctx context.Context, chatID string) (string, error) {
	out, err := call[struct {
		Chat Chat `json:"chat"`
	}](ctx, c, http.MethodPost, "/chats/"+chatID+"/title", map[string]string{})
	return out.Chat.Title, err
}

// StreamTurn reads the plain-text reply as it arrives and hands every read
// to onChunk. An abrupt end of the body surfaces as an error.
func (c *HTTPClient) StreamTurn(ctx context.Context, chatID, messageID string, opts StreamOptions, onChunk func(string)) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(opts).
		SetDoNotParseResponse(true).
		Post("/chats/" + chatID + "/messages/" + messageID + "/stream")
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= http.StatusBadRequest {
		return readAPIError(resp.StatusCode(), body)
	}

	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			// hold back a rune split across reads
			if cut := completeRunes(pending); cut > 0 {
				onChunk(string(pending[:cut]))
				pending = append(pending[:0], pending[cut:]...)
			}
		}
		if errors.Is(err, io.EOF) {
			if len(pending) > 0 {
				onChunk(string(pending))
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	}
}

// completeRunes returns the length of the longest prefix of p that does not
// end in a partial UTF-8 sequence.
func completeRunes(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			if utf8.FullRune(p[i:]) {
				return len(p)
			}
			return i
		}
	}
	return len(p)
}

func readAPIError(status int, body io.Reader) error {
	var fail envelope[any]
	b, _ := io.ReadAll(io.LimitReader(body, 64<<10))
	if err := json.Unmarshal(b, &fail); err != nil || fail.Message == "" {
		fail.Message = strings.TrimSpace(string(b))
	}
	return &APIError{Status: status, Code: fail.Code, Message: fail.Message}
}
