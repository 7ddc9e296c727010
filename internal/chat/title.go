package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/ai"
	"gorm.io/gorm"
)

const (
	UntitledChat      = "Untitled Chat"
	DefaultTitleModel = "gemini-2.0-flash-exp"

	titleTimeout  = 30 * time.Second
	fallbackWords = 4
)

// TitleService names a chat after its first user message using the google
// family. Any generation failure falls back to the message's leading words.
type TitleService struct {
	repo     *Repo
	registry *ai.Registry
	model    string
}

func NewTitleService(repo *Repo, registry *ai.Registry, model string) *TitleService {
	if strings.TrimSpace(model) == "" {
		model = DefaultTitleModel
	}
	return &TitleService{repo: repo, registry: registry, model: model}
}

func (s *TitleService) Generate(ctx context.Context, userID uint64, chatID string) (*Chat, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	c, err := s.repo.GetChatForUser(ctx, chatID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	first, err := s.repo.FirstUserMessage(ctx, chatID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoUserMessage
	}
	if err != nil {
		return nil, err
	}

	title, err := s.generate(ctx, first.Content)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("chat_id", chatID).Msg("title generation failed, using fallback")
		title = fallbackTitle(first.Content)
	}

	if err := s.repo.UpdateChatTitle(ctx, chatID, title); err != nil {
		return nil, fmt.Errorf("save title: %w", err)
	}
	c.Title = title
	return c, nil
}

func (s *TitleService) generate(ctx context.Context, content string) (string, error) {
	if s.registry == nil {
		return "", errors.New("no provider registry")
	}
	p, err := s.registry.Get(ctx, ai.FamilyGoogle)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	out, err := p.Chat(ctx, ai.Request{
		Model:   s.model,
		History: []ai.Message{{Role: ai.RoleUser, Content: titlePrompt(content)}},
	})
	if err != nil {
		return "", err
	}
	title := cleanTitle(out)
	if title == "" {
		return "", errors.New("empty title from provider")
	}
	return title, nil
}

func titlePrompt(content string) string {
	return fmt.Sprintf("Generate a very short, concise title (4 words max) for a conversation that starts with: %q. "+
		"Do not use quotes or any other formatting in your response. Just return the plain text title.", content)
}

func cleanTitle(s string) string {
	s = strings.NewReplacer(`"`, "", "“", "", "”", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func fallbackTitle(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return UntitledChat
	}
	if len(words) > fallbackWords {
		words = words[:fallbackWords]
	}
	return strings.Join(words, " ")
}
