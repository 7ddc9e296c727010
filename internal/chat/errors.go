package chat

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNoUserMessage   = errors.New("no user message found to generate title")
	ErrQuotaExhausted  = errors.New("no messages remaining")
	ErrEmptyContent    = errors.New("content is required")
	ErrClientGone      = errors.New("client disconnected")
)
