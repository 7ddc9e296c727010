package chat

import "context"

// TitleJob asks a worker to title a chat from its first user message.
type TitleJob struct {
	JobID  string `json:"job_id"`
	ChatID string `json:"chat_id"`
	UserID uint64 `json:"user_id"`
}

type TitleEnqueuer interface {
	EnqueueTitle(ctx context.Context, job TitleJob) error
}
