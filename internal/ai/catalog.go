package ai

import "strings"

// ModelInfo is a static catalog entry.
type ModelInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Family       Family   `json:"provider"`
	Upstream     string   `json:"-"`
	Info         string   `json:"info"`
	Capabilities []string `json:"capabilities"`
	Active       bool     `json:"active"`
}

const DefaultModelID = "gemini-2-5-flash"

var models = []ModelInfo{
	{ID: "gemini-2-5-flash", Name: "Gemini 2.5 Flash", Family: FamilyOpenRouter, Upstream: "google/gemini-flash-1.5:free", Info: "Google's latest fast model", Capabilities: []string{"vision", "web", "pdf"}, Active: true},
	{ID: "gemini-2-5-pro", Name: "Gemini 2.5 Pro", Family: FamilyGoogle, Upstream: "gemini-2.5-pro", Info: "Google's newest model, served directly", Capabilities: []string{"vision", "web", "pdf", "reasoning"}, Active: true},
	{ID: "gemini-2-flash-thinking", Name: "Gemini 2 Flash Thinking", Family: FamilyOpenRouter, Upstream: "google/gemini-2.0-flash-thinking-exp:free", Info: "Google's thinking model (Free)", Capabilities: []string{"reasoning"}, Active: true},
	{ID: "gpt-oss", Name: "GPT-OSS 120B", Family: FamilyGroq, Upstream: "openai/gpt-oss-120b", Info: "OpenAI GPT-OSS 120B", Capabilities: []string{"reasoning"}, Active: true},
	{ID: "gpt-4o", Name: "GPT-4o", Family: FamilyOpenRouter, Upstream: "openai/gpt-4o", Info: "OpenAI's GPT-4o via OpenRouter", Capabilities: []string{"vision"}, Active: true},
	{ID: "claude-3.5-sonnet", Name: "Claude 3.5 Sonnet", Family: FamilyOpenRouter, Upstream: "anthropic/claude-3.5-sonnet", Info: "Anthropic's flagship via OpenRouter", Capabilities: []string{"vision", "pdf"}, Active: true},
	{ID: "deepseek-chat", Name: "DeepSeek Chat", Family: FamilyOpenRouter, Upstream: "deepseek/deepseek-chat", Info: "DeepSeek Chat via OpenRouter", Capabilities: []string{"reasoning"}, Active: true},
	{ID: "llama-3-3-70b", Name: "Llama 3.3 70b", Family: FamilyGroq, Upstream: "llama-3.3-70b-versatile", Info: "Meta's Llama 3.3 70b on Groq", Capabilities: []string{}, Active: true},
	{ID: "llama-4-maverick", Name: "Llama 4 Maverick", Family: FamilyGroq, Upstream: "meta-llama/llama-4-maverick-17b-128e-instruct", Info: "Meta's Llama 4 Maverick on Groq", Capabilities: []string{}, Active: true},
	{ID: "qwen-qwq-32b", Name: "Qwen qwq-32b", Family: FamilyGroq, Upstream: "qwen-qwq-32b", Info: "Qwen base 32b on Groq", Capabilities: []string{"reasoning"}, Active: true},
	{ID: "deepseek-r1-llama-distilled", Name: "DeepSeek R1 (Llama Distilled)", Family: FamilyGroq, Upstream: "deepseek-r1-distill-llama-70b", Info: "DeepSeek R1 on Groq, distilled on Llama 3.3 70b", Capabilities: []string{"reasoning"}, Active: true},
}

var modelsByID = func() map[string]ModelInfo {
	m := make(map[string]ModelInfo, len(models))
	for _, mi := range models {
		m[mi.ID] = mi
	}
	return m
}()

// Models returns a copy of the catalog in display order.
func Models() []ModelInfo {
	out := make([]ModelInfo, len(models))
	copy(out, models)
	return out
}

// Lookup reports whether id names a catalog entry.
func Lookup(id string) (ModelInfo, bool) {
	mi, ok := modelsByID[strings.TrimSpace(id)]
	return mi, ok
}

// Resolve picks the first non-empty candidate id and maps it to a catalog
// entry. Unknown or stale ids resolve to the default model, never an error.
func Resolve(candidates ...string) ModelInfo {
	for _, id := range candidates {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if mi, ok := modelsByID[id]; ok {
			return mi
		}
		break
	}
	return modelsByID[DefaultModelID]
}
