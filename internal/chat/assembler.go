package chat

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/ai"
	"github.com/suPer8Hu/relaychat/internal/search"
)

const DefaultContextWindow = 20

// SystemPrompt is sent with every streamed turn.
const SystemPrompt = `You are a helpful assistant. Format every answer in Markdown.

Guidelines:
- Use headings (##, ###) to organise longer answers.
- Use bullet or numbered lists for steps and options.
- Put code in fenced blocks tagged with the language.
- Use **bold** for key terms and tables for comparisons.
- Keep answers concise and accurate. Say so when you are unsure.`

const searchPreamble = "\n\nWeb Search Results:\n"

const searchSuffix = "\n\nUse the above web search results to provide accurate, up-to-date information in your response."

// MessageLister reads a chat's messages oldest first.
type MessageLister interface {
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
}

// Context is the provider-ready prompt for one turn.
type Context struct {
	SystemPrompt string
	History      []ai.Message
}

type Assembler struct {
	messages MessageLister
	searcher search.Searcher
	window   int
}

// NewAssembler clamps window to 1..100 (default 20). A nil searcher
// disables web search.
func NewAssembler(messages MessageLister, searcher search.Searcher, window int) *Assembler {
	if window <= 0 || window > 100 {
		window = DefaultContextWindow
	}
	return &Assembler{messages: messages, searcher: searcher, window: window}
}

// Assemble never fails: a history read error yields an empty history and a
// search error yields no search context.
func (a *Assembler) Assemble(ctx context.Context, chatID string, family ai.Family, searchEnabled bool) Context {
	all, err := a.messages.ListMessages(ctx, chatID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("chat_id", chatID).Msg("load chat history")
		all = nil
	}

	recent := all
	if len(recent) > a.window {
		recent = recent[len(recent)-a.window:]
	}
	history := make([]ai.Message, 0, len(recent))
	for _, m := range recent {
		if m.Content == "" {
			continue
		}
		history = append(history, ai.Message{Role: mapRole(m.Role, family), Content: m.Content})
	}

	prompt := SystemPrompt
	if searchEnabled {
		if text := a.searchContext(ctx, all); text != "" {
			prompt += searchPreamble + text + searchSuffix
		}
	}
	return Context{SystemPrompt: prompt, History: history}
}

func (a *Assembler) searchContext(ctx context.Context, all []Message) string {
	if a.searcher == nil {
		return ""
	}
	query := ""
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Role == RoleUser {
			query = all[i].Content
			break
		}
	}
	if strings.TrimSpace(query) == "" {
		return ""
	}
	text, err := a.searcher.Search(ctx, query)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("web search failed, continuing without results")
		return ""
	}
	return strings.TrimSpace(text)
}
