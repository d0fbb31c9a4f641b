package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptRAGSystem is the system prompt for grounded answers.
	// The template expects a {context} placeholder.
	PromptRAGSystem = "rag_system"

	// PromptDirectChat is the system prompt for chat without retrieval.
	PromptDirectChat = "direct_chat"

	// PromptTaskSummary summarises a book. Placeholders: {title}, {content}.
	PromptTaskSummary = "task_summary"

	// PromptTaskAuthor researches an author. Placeholders: {author}, {title}.
	PromptTaskAuthor = "task_author"

	// PromptTaskRecommendation recommends related books. Placeholders: {title}, {content}.
	PromptTaskRecommendation = "task_recommendation"
)

// AllPromptNames returns every well-known prompt name.
func AllPromptNames() []string {
	return []string{
		PromptRAGSystem,
		PromptDirectChat,
		PromptTaskSummary,
		PromptTaskAuthor,
		PromptTaskRecommendation,
	}
}
