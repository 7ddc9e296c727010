package chat

import "time"

const (
	RoleUser  = "user"
	RoleModel = "model"

	DefaultTitle = "New Chat"
)

type Chat struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title     string    `gorm:"type:varchar(255);not null;default:'New Chat'" json:"title"`
	UserID    uint64    `gorm:"index:idx_chats_user_updated,priority:1;not null" json:"userId"`
	ModelID   *string   `gorm:"type:varchar(64)" json:"modelId"`
	Pinned    bool      `gorm:"not null;default:false" json:"pinned"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index:idx_chats_user_updated,priority:2" json:"updatedAt"`
}

func (Chat) TableName() string { return "chats" }

// Message ids are monotonic ULIDs, so id order matches creation order even
// when two rows share a timestamp.
type Message struct {
	ID            string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	ChatID        string    `gorm:"type:varchar(36);not null;index:idx_messages_chat_created,priority:1" json:"chatId"`
	Role          string    `gorm:"type:varchar(16);not null" json:"role"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	CreatedAt     time.Time `gorm:"index:idx_messages_chat_created,priority:2" json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	ParentID      *string   `gorm:"type:varchar(26)" json:"parentId,omitempty"`
	ActiveChildID *string   `gorm:"type:varchar(26)" json:"activeChildId,omitempty"`
}

func (Message) TableName() string { return "messages" }
