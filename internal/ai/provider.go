package ai

import (
	"context"
	"errors"
	"fmt"
)

// Family tags the upstream backend a model is served by.
type Family string

const (
	FamilyGoogle     Family = "google"
	FamilyGroq       Family = "groq"
	FamilyOpenRouter Family = "openrouter"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleModel     = "model"
)

// Message is one provider-native history entry. Role is already mapped to
// the family's vocabulary ("model" for google, "assistant" otherwise).
type Message struct {
	Role    string
	Content string
}

type Request struct {
	Model        string
	SystemPrompt string
	History      []Message
}

// DeltaStream yields non-empty text deltas in upstream order.
// Recv returns io.EOF once the upstream stream ends normally.
type DeltaStream interface {
	Recv() (string, error)
	Close() error
}

type Provider interface {
	Family() Family
	Chat(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request) (DeltaStream, error)
}

var ErrMissingCredential = errors.New("provider credential not configured")

// Readier is implemented by providers that can tell, without a network call,
// whether they are able to serve requests at all.
type Readier interface {
	Ready() error
}

// UpstreamError is returned when the provider answers with a non-2xx status
// or reports an error inside the stream.
type UpstreamError struct {
	Family  Family
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Family, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Family, e.Message)
}
