package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/suPer8Hu/relaychat/internal/common"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateChat(ctx context.Context, c *Chat) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	return r.db.WithContext(ctx).Create(c).Error
}

// GetChatForUser returns gorm.ErrRecordNotFound when the chat is missing or
// belongs to someone else.
func (r *Repo) GetChatForUser(ctx context.Context, chatID string, userID uint64) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", chatID, userID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChats returns the user's chats, most recently active first.
func (r *Repo) ListChats(ctx context.Context, userID uint64) ([]Chat, error) {
	var chats []Chat
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

// DeleteChat removes the chat's messages and then the chat, in one
// transaction.
func (r *Repo) DeleteChat(ctx context.Context, chatID string, userID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Chat
		if err := tx.Select("id").Where("id = ? AND user_id = ?", chatID, userID).First(&c).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", chatID).Delete(&Chat{}).Error
	})
}

func (r *Repo) TouchChat(ctx context.Context, chatID string) error {
	return r.db.WithContext(ctx).Model(&Chat{}).
		Where("id = ?", chatID).
		UpdateColumn("updated_at", time.Now()).Error
}

func (r *Repo) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	return r.db.WithContext(ctx).Model(&Chat{}).
		Where("id = ?", chatID).
		Updates(map[string]any{"title": title, "updated_at": time.Now()}).Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = common.NewULID()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) DeleteMessage(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Message{}).Error
}

func (r *Repo) GetMessage(ctx context.Context, chatID, messageID string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("id = ? AND chat_id = ?", messageID, chatID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns the chat's messages oldest first.
func (r *Repo) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// UpdateMessageContent returns gorm.ErrRecordNotFound when no row matched.
func (r *Repo) UpdateMessageContent(ctx context.Context, id, content string) error {
	res := r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Updates(map[string]any{"content": content, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) FirstUserMessage(ctx context.Context, chatID string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ? AND role = ?", chatID, RoleUser).
		Order("created_at ASC").Order("id ASC").
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
