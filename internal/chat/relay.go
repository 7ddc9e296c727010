package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/ai"
	"github.com/suPer8Hu/relaychat/internal/metrics"
	"gorm.io/gorm"
)

type State int

const (
	StateValidating State = iota
	StateProviderSelected
	StateStreaming
	StateCommitting
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateProviderSelected:
		return "provider_selected"
	case StateStreaming:
		return "streaming"
	case StateCommitting:
		return "committing"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// TurnStore is the slice of the conversation store the relay needs.
type TurnStore interface {
	GetChatForUser(ctx context.Context, chatID string, userID uint64) (*Chat, error)
	GetMessage(ctx context.Context, chatID, messageID string) (*Message, error)
	UpdateMessageContent(ctx context.Context, id, content string) error
	TouchChat(ctx context.Context, chatID string) error
}

type QuotaSpender interface {
	Decrement(ctx context.Context, userID uint64) (bool, error)
}

// Sink receives deltas in order. A write error means the client is gone.
type Sink interface {
	WriteDelta(delta string) error
}

type TurnRequest struct {
	UserID    uint64
	ChatID    string
	MessageID string
	ModelID   string
	WebSearch bool
}

// Turn is one in-flight streamed reply, from Open until Forward returns.
type Turn struct {
	Request TurnRequest
	Model   ai.ModelInfo
	State   State
	Content string

	stream ai.DeltaStream
	opened time.Time
}

type Relay struct {
	store     TurnStore
	quota     QuotaSpender
	registry  *ai.Registry
	assembler *Assembler
}

func NewRelay(store TurnStore, quota QuotaSpender, registry *ai.Registry, assembler *Assembler) *Relay {
	return &Relay{store: store, quota: quota, registry: registry, assembler: assembler}
}

// Open validates the turn, picks the model and opens the upstream stream.
// Nothing is written to storage here, so every error can be reported to the
// client before any byte of the reply is sent.
func (r *Relay) Open(ctx context.Context, req TurnRequest) (*Turn, error) {
	t := &Turn{Request: req, State: StateValidating}

	if req.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	chat, err := r.store.GetChatForUser(ctx, req.ChatID, req.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	target, err := r.store.GetMessage(ctx, req.ChatID, req.MessageID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && target.Role != RoleModel) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	chatModel := ""
	if chat.ModelID != nil {
		chatModel = *chat.ModelID
	}
	t.Model = ai.Resolve(req.ModelID, chatModel)
	t.State = StateProviderSelected

	provider, err := r.registry.Get(ctx, t.Model.Family)
	if err != nil {
		metrics.RelayTurnsTotal.WithLabelValues(string(t.Model.Family), "rejected").Inc()
		return nil, err
	}

	// refuse before spending a search on a provider that cannot answer
	if rd, ok := provider.(ai.Readier); ok {
		if err := rd.Ready(); err != nil {
			metrics.RelayTurnsTotal.WithLabelValues(string(t.Model.Family), "rejected").Inc()
			return nil, err
		}
	}

	pc := r.assembler.Assemble(ctx, req.ChatID, t.Model.Family, req.WebSearch)
	stream, err := provider.Stream(ctx, ai.Request{
		Model:        t.Model.Upstream,
		SystemPrompt: pc.SystemPrompt,
		History:      pc.History,
	})
	if err != nil {
		metrics.RelayTurnsTotal.WithLabelValues(string(t.Model.Family), "rejected").Inc()
		return nil, err
	}
	t.stream = stream
	t.opened = time.Now()
	t.State = StateStreaming
	return t, nil
}

// Forward copies deltas from the upstream stream into sink, then commits the
// accumulated reply. The commit runs only when the stream ended normally and
// produced text. Content is saved first; the chat touch and quota spend that
// follow are logged on failure but never undo the saved content.
func (r *Relay) Forward(ctx context.Context, t *Turn, sink Sink) error {
	family := string(t.Model.Family)
	logger := log.Ctx(ctx).With().
		Str("chat_id", t.Request.ChatID).
		Str("message_id", t.Request.MessageID).
		Str("model", t.Model.ID).
		Logger()
	defer func() {
		if err := t.stream.Close(); err != nil {
			logger.Debug().Err(err).Msg("close upstream stream")
		}
		metrics.RelayStreamDuration.WithLabelValues(family).Observe(time.Since(t.opened).Seconds())
	}()

	var acc strings.Builder
	for {
		delta, err := t.stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.State = StateErrored
			t.Content = acc.String()
			metrics.RelayTurnsTotal.WithLabelValues(family, "errored").Inc()
			logger.Error().Err(err).Int("partial_len", acc.Len()).Msg("upstream stream failed")
			return fmt.Errorf("provider stream: %w", err)
		}
		if delta == "" {
			continue
		}
		acc.WriteString(delta)
		if err := sink.WriteDelta(delta); err != nil {
			t.State = StateErrored
			t.Content = acc.String()
			metrics.RelayTurnsTotal.WithLabelValues(family, "client_gone").Inc()
			logger.Info().Err(err).Msg("client went away mid-stream")
			return fmt.Errorf("%w: %v", ErrClientGone, err)
		}
		metrics.RelayDeltasTotal.WithLabelValues(family).Inc()
	}

	t.Content = acc.String()
	if t.Content == "" {
		t.State = StateClosed
		metrics.RelayTurnsTotal.WithLabelValues(family, "empty").Inc()
		logger.Warn().Msg("provider returned no text, nothing committed")
		return nil
	}

	t.State = StateCommitting
	// The reply is already on the client, so finish the commit even if the
	// request context is cancelled right after the last byte.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := r.store.UpdateMessageContent(cctx, t.Request.MessageID, t.Content); err != nil {
		t.State = StateErrored
		metrics.RelayTurnsTotal.WithLabelValues(family, "errored").Inc()
		logger.Error().Err(err).Msg("save model reply")
		return fmt.Errorf("save reply: %w", err)
	}
	if err := r.store.TouchChat(cctx, t.Request.ChatID); err != nil {
		logger.Warn().Err(err).Msg("touch chat")
	}
	if r.quota != nil {
		spent, err := r.quota.Decrement(cctx, t.Request.UserID)
		switch {
		case err != nil:
			logger.Error().Err(err).Uint64("user_id", t.Request.UserID).Msg("decrement quota")
		case !spent:
			logger.Warn().Uint64("user_id", t.Request.UserID).Msg("quota already exhausted at commit")
		}
	}

	t.State = StateClosed
	metrics.RelayTurnsTotal.WithLabelValues(family, "committed").Inc()
	logger.Info().Int("reply_len", len(t.Content)).Dur("elapsed", time.Since(t.opened)).Msg("turn committed")
	return nil
}
