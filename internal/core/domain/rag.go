package domain

import "time"

// NoRelevantInformationMessage is returned as the answer when retrieval
// finds no chunks.
const NoRelevantInformationMessage = "抱歉，我没有找到相关的信息来回答您的问题。"

// GenerationFailedMessage is returned as the answer when retrieval itself fails.
const GenerationFailedMessage = "抱歉，生成回答时出现错误，请稍后重试。"

// EmptyMessageReply is the chat reply to an empty message.
const EmptyMessageReply = "请提供您的问题。"

// DirectChatFailedReply is the chat reply when direct generation fails.
const DirectChatFailedReply = "抱歉，处理您的请求时出现错误，请稍后重试。"

// ExtractiveAnswerTemplate wraps the leading context when generation is
// unavailable. The single verb receives the context excerpt.
const ExtractiveAnswerTemplate = "基于书籍内容，我找到了以下相关信息：\n\n%s...\n\n这是对您问题的回答。"

// ExtractiveExcerptLength is the rune length of the excerpt used by
// ExtractiveAnswerTemplate.
const ExtractiveExcerptLength = 500

// Outcome describes how a pipeline stage sequence ended.
type Outcome string

const (
	// OutcomeSuccess means every stage completed.
	OutcomeSuccess Outcome = "success"

	// OutcomeDegraded means a fallback produced the result.
	OutcomeDegraded Outcome = "degraded"

	// OutcomeFailed means no meaningful result could be produced.
	OutcomeFailed Outcome = "failed"
)

// AnswerRequest is the input to the RAG orchestrator.
type AnswerRequest struct {
	Query      string
	DocumentID string
	TopK       int

	// Threshold filters retrieved chunks when non-nil.
	Threshold *float64
}

// Answer is the result of a retrieval-augmented answer.
type Answer struct {
	Answer       string         `json:"answer"`
	Context      []ContextChunk `json:"context"`
	Confidence   float64        `json:"confidence"`
	ModelUsed    string         `json:"model_used"`
	ResponseTime time.Duration  `json:"response_time"`
	Query        string         `json:"query"`
	DocumentID   string         `json:"document_id,omitempty"`
	Outcome      Outcome        `json:"outcome"`

	// Err carries the cause of a degraded or failed outcome, or
	// ErrNoRelevantContext when retrieval found nothing to answer from.
	Err error `json:"-"`
}

// Role identifies the speaker of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one user turn in a chat session.
type ChatRequest struct {
	// SessionID selects the session. Empty creates a new one.
	SessionID  string
	DocumentID string
	Message    string

	// UseRetrieval allows the heuristic to route the message through RAG.
	UseRetrieval bool
	TopK         int
}

// ChatReply is the assistant turn produced for a ChatRequest.
type ChatReply struct {
	SessionID    string         `json:"session_id"`
	Reply        string         `json:"reply"`
	UsedRAG      bool           `json:"used_rag"`
	Context      []ContextChunk `json:"context,omitempty"`
	Confidence   float64        `json:"confidence"`
	Outcome      Outcome        `json:"outcome"`
	ResponseTime time.Duration  `json:"response_time"`
}
