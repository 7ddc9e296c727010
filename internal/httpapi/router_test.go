package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/relaychat/internal/ai"
	"github.com/suPer8Hu/relaychat/internal/chat"
	"github.com/suPer8Hu/relaychat/internal/config"
	"github.com/suPer8Hu/relaychat/internal/httpapi/handlers"
	"github.com/suPer8Hu/relaychat/internal/models"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

type deltaStream struct {
	deltas []string
	err    error
}

func (s *deltaStream) Recv() (string, error) {
	if len(s.deltas) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *deltaStream) Close() error { return nil }

type fakeProvider struct {
	family  ai.Family
	deltas  []string
	tailErr error
	title   string
}

func (p *fakeProvider) Family() ai.Family { return p.family }

func (p *fakeProvider) Chat(context.Context, ai.Request) (string, error) {
	if p.title == "" {
		return "", errors.New("no title scripted")
	}
	return p.title, nil
}

func (p *fakeProvider) Stream(context.Context, ai.Request) (ai.DeltaStream, error) {
	return &deltaStream{deltas: append([]string(nil), p.deltas...), err: p.tailErr}, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []chat.TitleJob
}

func (q *recordingQueue) EnqueueTitle(_ context.Context, job chat.TitleJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	token  string
	userID uint64
}

func newTestServer(t *testing.T, queue chat.TitleEnqueuer, providers ...ai.Provider) *testServer {
	t.Helper()
	return newTestServerQuota(t, 50, queue, providers...)
}

func newTestServerQuota(t *testing.T, quota int, queue chat.TitleEnqueuer, providers ...ai.Provider) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &chat.Chat{}, &chat.Message{}))

	cfg := config.Config{
		JWTSecret:             "test-secret",
		SessionTTL:            time.Hour,
		ChatContextWindowSize: 20,
		DefaultMessageQuota:   quota,
	}
	reg := ai.NewRegistry()
	for _, p := range providers {
		reg.RegisterProvider(p)
	}
	h := handlers.NewHandler(db, cfg, reg, nil, queue)
	return &testServer{t: t, db: db, router: NewRouter(h)}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return env
}

func (s *testServer) signupAndLogin(email string) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/signup", gin.H{"email": email, "password": "secret1", "fullName": "Ada L"})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var out struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	w = s.do(http.MethodPost, "/auth/login", gin.H{"email": email, "password": "secret1"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	decode(s.t, w, &out)
	require.NotEmpty(s.t, out.Token)
	s.token = out.Token
	s.userID = out.User.ID
}

func (s *testServer) newTurn(modelID, content string) (chatID, aiMsgID string) {
	s.t.Helper()
	var created struct {
		Chat chat.Chat `json:"chat"`
	}
	w := s.do(http.MethodPost, "/chats", gin.H{"modelId": modelID})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	decode(s.t, w, &created)

	var turn struct {
		UserMessage chat.Message `json:"userMessage"`
		AIMessage   chat.Message `json:"aiMessage"`
	}
	w = s.do(http.MethodPost, "/chats/"+created.Chat.ID+"/messages", gin.H{"content": content})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	decode(s.t, w, &turn)
	require.Equal(s.t, chat.RoleModel, turn.AIMessage.Role)
	return created.Chat.ID, turn.AIMessage.ID
}

func TestSignup_ZeroQuotaKept(t *testing.T) {
	s := newTestServerQuota(t, 0, nil)
	s.signupAndLogin("zero@b.io")

	var u models.User
	require.NoError(t, s.db.First(&u, s.userID).Error)
	assert.Equal(t, 0, u.MessageCount)

	var created struct {
		Chat chat.Chat `json:"chat"`
	}
	w := s.do(http.MethodPost, "/chats", gin.H{})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &created)

	w = s.do(http.MethodPost, "/chats/"+created.Chat.ID+"/messages", gin.H{"content": "hi"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 42901, decode(t, w, nil).Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/chats", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40101, decode(t, w, nil).Code)

	w = s.do(http.MethodPost, "/auth/signup", gin.H{"email": "a@b.io", "password": "123", "fullName": "A"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "password must be at least 6 characters", decode(t, w, nil).Message)

	s.signupAndLogin("a@b.io")

	w = s.do(http.MethodPost, "/auth/signup", gin.H{"email": "A@b.io", "password": "secret1", "fullName": "A"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/auth/login", gin.H{"email": "a@b.io", "password": "wrong-pw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var me struct {
		Email        string `json:"email"`
		Username     string `json:"username"`
		MessageCount int    `json:"messageCount"`
	}
	w = s.do(http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &me)
	assert.Equal(t, "a@b.io", me.Email)
	assert.Equal(t, "Ada L", me.Username)
	assert.Equal(t, 50, me.MessageCount)
}

func TestStreamTurn_EndToEnd(t *testing.T) {
	p := &fakeProvider{family: ai.FamilyOpenRouter, deltas: []string{"Hi", " there!"}}
	s := newTestServer(t, nil, p)
	s.signupAndLogin("e2e@x.io")

	chatID, aiID := s.newTurn("gemini-2-5-flash", "hi")

	w := s.do(http.MethodPost, "/chats/"+chatID+"/messages/"+aiID+"/stream", gin.H{"webSearch": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hi there!", w.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "gemini-2-5-flash", w.Header().Get("X-Model-Id"))

	var list struct {
		Messages []chat.Message `json:"messages"`
	}
	w = s.do(http.MethodGet, "/chats/"+chatID+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, "hi", list.Messages[0].Content)
	assert.Equal(t, "Hi there!", list.Messages[1].Content)

	var me struct {
		MessageCount int `json:"messageCount"`
	}
	decode(t, s.do(http.MethodGet, "/me", nil), &me)
	assert.Equal(t, 49, me.MessageCount)

	// PATCH reaches the same handler
	w = s.do(http.MethodPatch, "/chats/"+chatID+"/messages/"+aiID+"/stream", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStreamTurn_PreStreamErrors(t *testing.T) {
	s := newTestServer(t, nil, ai.NewOpenRouterProvider("", "", "", ""))
	s.signupAndLogin("pre@x.io")
	chatID, aiID := s.newTurn("", "hi")

	w := s.do(http.MethodPost, "/chats/"+chatID+"/messages/nope/stream", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40005, decode(t, w, nil).Code)

	w = s.do(http.MethodPost, "/chats/other/messages/"+aiID+"/stream", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/chats/"+chatID+"/messages/"+aiID+"/stream", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 50002, decode(t, w, nil).Code)
}

func TestStreamTurn_MidStreamFailureAbortsConnection(t *testing.T) {
	p := &fakeProvider{family: ai.FamilyOpenRouter, deltas: []string{"part"}, tailErr: errors.New("reset")}
	s := newTestServer(t, nil, p)
	s.signupAndLogin("abort@x.io")
	chatID, aiID := s.newTurn("", "hi")

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		s.do(http.MethodPost, "/chats/"+chatID+"/messages/"+aiID+"/stream", nil)
	})

	var m chat.Message
	require.NoError(t, s.db.First(&m, "id = ?", aiID).Error)
	assert.Empty(t, m.Content)
}

func TestCreateMessage_QuotaExhausted(t *testing.T) {
	s := newTestServer(t, nil)
	s.signupAndLogin("q@x.io")
	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", s.userID).UpdateColumn("message_count", 0).Error)

	w := s.do(http.MethodPost, "/chats", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Chat chat.Chat `json:"chat"`
	}
	decode(t, w, &created)
	assert.Equal(t, chat.DefaultTitle, created.Chat.Title)

	w = s.do(http.MethodPost, "/chats/"+created.Chat.ID+"/messages", gin.H{"content": "hi"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 42901, decode(t, w, nil).Code)

	w = s.do(http.MethodPost, "/chats/"+created.Chat.ID+"/messages", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "content is required", decode(t, w, nil).Message)
}

func TestGenerateTitle(t *testing.T) {
	queue := &recordingQueue{}
	s := newTestServer(t, queue, &fakeProvider{family: ai.FamilyGoogle, title: "Greeting Chat"})
	s.signupAndLogin("t@x.io")

	var created struct {
		Chat chat.Chat `json:"chat"`
	}
	decode(t, s.do(http.MethodPost, "/chats", nil), &created)
	w := s.do(http.MethodPost, "/chats/"+created.Chat.ID+"/title", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	chatID, _ := s.newTurn("", "hello there friend")

	var titled struct {
		Chat chat.Chat `json:"chat"`
	}
	w = s.do(http.MethodPost, "/chats/"+chatID+"/title", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &titled)
	assert.Equal(t, "Greeting Chat", titled.Chat.Title)

	w = s.do(http.MethodPost, "/chats/"+chatID+"/title?async=true", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, chatID, queue.jobs[0].ChatID)
	assert.Equal(t, s.userID, queue.jobs[0].UserID)
}

func TestChatsListAndDelete(t *testing.T) {
	s := newTestServer(t, nil)
	s.signupAndLogin("l@x.io")

	var a struct {
		Chat chat.Chat `json:"chat"`
	}
	decode(t, s.do(http.MethodPost, "/chats", gin.H{"title": "first"}), &a)
	decode(t, s.do(http.MethodPost, "/chats", gin.H{"title": "second"}), nil)

	var list struct {
		Chats []chat.Chat `json:"chats"`
	}
	decode(t, s.do(http.MethodGet, "/chats", nil), &list)
	assert.Len(t, list.Chats, 2)

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/chats/"+a.Chat.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/chats/"+a.Chat.ID, nil).Code)

	var ms struct {
		Models         []ai.ModelInfo `json:"models"`
		DefaultModelID string         `json:"defaultModelId"`
	}
	decode(t, s.do(http.MethodGet, "/models", nil), &ms)
	assert.Equal(t, ai.DefaultModelID, ms.DefaultModelID)
	assert.NotEmpty(t, ms.Models)
}
