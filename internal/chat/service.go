package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/ai"
	"gorm.io/gorm"
)

// QuotaReader reports how many messages a user has left.
type QuotaReader interface {
	Remaining(ctx context.Context, userID uint64) (int, error)
}

type Service struct {
	repo  *Repo
	quota QuotaReader
}

// NewService builds the chat service. A nil quota disables the turn gate.
func NewService(repo *Repo, quota QuotaReader) *Service {
	return &Service{repo: repo, quota: quota}
}

func (s *Service) CreateChat(ctx context.Context, userID uint64, title, modelID string) (*Chat, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	c := &Chat{UserID: userID, Title: strings.TrimSpace(title)}
	if id := strings.TrimSpace(modelID); id != "" {
		c.ModelID = &id
	}
	if err := s.repo.CreateChat(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ListChats(ctx context.Context, userID uint64) ([]Chat, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	return s.repo.ListChats(ctx, userID)
}

func (s *Service) DeleteChat(ctx context.Context, userID uint64, chatID string) error {
	if userID == 0 {
		return ErrUnauthenticated
	}
	err := s.repo.DeleteChat(ctx, chatID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrChatNotFound
	}
	return err
}

// GetChat returns the chat if userID owns it.
func (s *Service) GetChat(ctx context.Context, userID uint64, chatID string) (*Chat, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	c, err := s.repo.GetChatForUser(ctx, chatID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	return c, err
}

func (s *Service) ListMessages(ctx context.Context, userID uint64, chatID string) ([]Message, error) {
	if _, err := s.GetChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, chatID)
}

// CreateTurn stores the user message followed by an empty model placeholder
// that the relay fills in later. If the placeholder cannot be stored the user
// message is removed again so no half turn is left behind.
func (s *Service) CreateTurn(ctx context.Context, userID uint64, chatID, content string) (*Message, *Message, error) {
	chat, err := s.GetChat(ctx, userID, chatID)
	if err != nil {
		return nil, nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, ErrEmptyContent
	}
	if s.quota != nil {
		left, err := s.quota.Remaining(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("read quota: %w", err)
		}
		if left <= 0 {
			return nil, nil, ErrQuotaExhausted
		}
	}

	userMsg := &Message{ChatID: chat.ID, Role: RoleUser, Content: content}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, nil, fmt.Errorf("insert user message: %w", err)
	}

	aiMsg := &Message{ChatID: chat.ID, Role: RoleModel, Content: ""}
	if err := s.repo.InsertMessage(ctx, aiMsg); err != nil {
		if delErr := s.repo.DeleteMessage(ctx, userMsg.ID); delErr != nil {
			log.Ctx(ctx).Error().Err(delErr).Str("message_id", userMsg.ID).Msg("rollback user message")
		}
		return nil, nil, fmt.Errorf("insert model placeholder: %w", err)
	}

	if err := s.repo.TouchChat(ctx, chat.ID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("chat_id", chat.ID).Msg("touch chat")
	}
	return userMsg, aiMsg, nil
}

// mapRole converts a stored role into the vocabulary of family.
func mapRole(role string, family ai.Family) string {
	if role != RoleModel {
		return ai.RoleUser
	}
	if family == ai.FamilyGoogle {
		return ai.RoleModel
	}
	return ai.RoleAssistant
}
