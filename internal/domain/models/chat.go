package models

// Message is one entry in the OpenAI-compatible message list.
type Message struct {
	Role    string `json:"role"` // user, assistant, or system
	Content string `json:"content"`
}

// SearchResult is one web-search hit passed to the prompt assembler.
// The search provider is an external collaborator; results are opaque input.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// RAGMetadata carries per-chunk metadata from the retrieval provider.
type RAGMetadata struct {
	Filename string `json:"filename"`
	Category string `json:"category,omitempty"`
}

// RAGMatch is one retrieval hit with its relevance score in [0, 1].
type RAGMatch struct {
	Content  string      `json:"content"`
	Metadata RAGMetadata `json:"metadata"`
	Score    float64     `json:"score"`
}

// ChatTurn is one completed exchange in a conversation. Turns are immutable
// once appended to the history; the history is append-only and chronological.
type ChatTurn struct {
	Role       string         `json:"role"` // user or assistant
	Content    string         `json:"content"`
	Sources    []SearchResult `json:"sources,omitempty"`
	RAGSources []RAGMatch     `json:"ragSources,omitempty"`
}

// ConversationMode selects how the prompt assembler builds the turn.
type ConversationMode string

const (
	ModeFree    ConversationMode = ""        // free chat, no system prompt
	ModeExplain ConversationMode = "explain" // structured explanation
	ModeIdea    ConversationMode = "idea"    // brainstorming
	ModeSearch  ConversationMode = "search"  // web-search grounded answer
	ModeRAG     ConversationMode = "rag"     // knowledge-base grounded answer
)

// LLMConfig identifies the upstream OpenAI-compatible endpoint for one turn.
// All state travels in the request body; the relay holds no session affinity.
type LLMConfig struct {
	BaseURL     string   `json:"baseUrl"`
	APIKey      string   `json:"apiKey,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

// SystemPrompts optionally overrides the stored prompt templates for one turn.
type SystemPrompts struct {
	Common  string `json:"common,omitempty"`
	Explain string `json:"explain,omitempty"`
	Idea    string `json:"idea,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message       string           `json:"message"`
	Mode          ConversationMode `json:"mode,omitempty"`
	LLMConfig     LLMConfig        `json:"llmConfig"`
	SearchResults []SearchResult   `json:"searchResults,omitempty"`
	RAGContext    []RAGMatch       `json:"ragContext,omitempty"`
	History       []ChatTurn       `json:"history,omitempty"`
	SystemPrompts *SystemPrompts   `json:"systemPrompts,omitempty"`
	// UseRAG asks the relay to run retrieval itself when no ragContext is
	// provided. Category narrows retrieval to one knowledge tag.
	UseRAG   bool   `json:"useRag,omitempty"`
	Category string `json:"category,omitempty"`
}
