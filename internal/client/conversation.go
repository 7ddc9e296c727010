package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/common"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

var (
	ErrBusy     = errors.New("a message is already being sent")
	ErrNotFound = errors.New("message not in conversation")
)

// Conversation is the client's optimistic view of one chat. Entries are kept
// in display order with an id index; temporary entries are swapped in place
// for the server's records once the turn is created.
type Conversation struct {
	api    API
	chatID string

	mu       sync.Mutex
	entries  []Entry
	index    map[string]int
	busy     bool
	titled   bool
	opts     StreamOptions
	onChange func([]Entry)
	onTitle  func(string)

	bg sync.WaitGroup
}

// NewConversation starts from history, the chat's persisted messages. A chat
// that already has messages is treated as titled.
func NewConversation(api API, chatID string, history []Entry) *Conversation {
	c := &Conversation{
		api:    api,
		chatID: chatID,
		titled: len(history) > 0,
	}
	c.entries = append([]Entry(nil), history...)
	c.reindex()
	return c
}

func (c *Conversation) SetOptions(opts StreamOptions) {
	c.mu.Lock()
	c.opts = opts
	c.mu.Unlock()
}

// OnChange registers fn to receive a snapshot after every visible change.
func (c *Conversation) OnChange(fn func([]Entry)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Conversation) OnTitle(fn func(string)) {
	c.mu.Lock()
	c.onTitle = fn
	c.mu.Unlock()
}

func (c *Conversation) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Wait blocks until background work such as title generation is done.
func (c *Conversation) Wait() { c.bg.Wait() }

func (c *Conversation) Send(ctx context.Context, content string) error {
	return c.submit(ctx, content, -1)
}

// Retry keeps the given user turn, drops everything after it and sends the
// same content again as a new pair.
func (c *Conversation) Retry(ctx context.Context, userMessageID string) error {
	c.mu.Lock()
	idx, ok := c.index[userMessageID]
	if !ok || c.entries[idx].Role != RoleUser {
		c.mu.Unlock()
		return ErrNotFound
	}
	content := c.entries[idx].Content
	c.mu.Unlock()
	return c.submit(ctx, content, idx+1)
}

// Edit replaces the given user turn with new content, dropping every entry
// from that turn on.
func (c *Conversation) Edit(ctx context.Context, userMessageID, content string) error {
	c.mu.Lock()
	idx, ok := c.index[userMessageID]
	if !ok || c.entries[idx].Role != RoleUser {
		c.mu.Unlock()
		return ErrNotFound
	}
	c.mu.Unlock()
	return c.submit(ctx, content, idx)
}

// submit runs one optimistic turn. truncateAt >= 0 cuts the list to that
// length first.
func (c *Conversation) submit(ctx context.Context, content string, truncateAt int) error {
	tempUser := "temp-user-" + common.NewULID()
	tempModel := "temp-ai-" + common.NewULID()

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	if truncateAt >= 0 && truncateAt <= len(c.entries) {
		c.entries = c.entries[:truncateAt]
	}
	c.entries = append(c.entries,
		Entry{ID: tempUser, ChatID: c.chatID, Role: RoleUser, Content: content},
		Entry{ID: tempModel, ChatID: c.chatID, Role: RoleModel},
	)
	c.reindex()
	opts := c.opts
	c.notifyLocked()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	userMsg, modelMsg, err := c.api.CreateTurn(ctx, c.chatID, content)
	if err != nil {
		c.remove(tempUser, tempModel)
		return fmt.Errorf("create turn: %w", err)
	}

	c.mu.Lock()
	c.swapLocked(tempUser, userMsg)
	c.swapLocked(tempModel, modelMsg)
	c.notifyLocked()
	c.mu.Unlock()

	err = c.api.StreamTurn(ctx, c.chatID, modelMsg.ID, opts, func(chunk string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if i, ok := c.index[modelMsg.ID]; ok {
			c.entries[i].Content += chunk
			c.notifyLocked()
		}
	})
	if err != nil {
		c.remove(userMsg.ID, modelMsg.ID)
		return fmt.Errorf("stream turn: %w", err)
	}

	c.maybeTitle(ctx)
	return nil
}

// maybeTitle fires title generation once, right after the first completed
// exchange of a fresh chat.
func (c *Conversation) maybeTitle(ctx context.Context) {
	c.mu.Lock()
	fresh := len(c.entries) == 2 && c.entries[0].Role == RoleUser && c.entries[1].Role == RoleModel
	if c.titled || !fresh {
		c.mu.Unlock()
		return
	}
	c.titled = true
	onTitle := c.onTitle
	c.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		title, err := c.api.GenerateTitle(bg, c.chatID)
		if err != nil {
			log.Warn().Err(err).Str("chat_id", c.chatID).Msg("generate title")
			return
		}
		if onTitle != nil {
			onTitle(title)
		}
	}()
}

func (c *Conversation) swapLocked(tempID string, e Entry) {
	i, ok := c.index[tempID]
	if !ok {
		return
	}
	c.entries[i] = e
	delete(c.index, tempID)
	c.index[e.ID] = i
}

func (c *Conversation) remove(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := c.entries[:0]
	for _, e := range c.entries {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	c.entries = kept
	c.reindex()
	c.notifyLocked()
}

func (c *Conversation) reindex() {
	c.index = make(map[string]int, len(c.entries))
	for i, e := range c.entries {
		c.index[e.ID] = i
	}
}

func (c *Conversation) notifyLocked() {
	if c.onChange != nil {
		c.onChange(append([]Entry(nil), c.entries...))
	}
}
