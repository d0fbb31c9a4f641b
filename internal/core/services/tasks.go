package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/core/ports/driving"
	"github.com/custodia-labs/libris/internal/logger"
)

// Ensure the dispatcher and handlers implement the interfaces.
var (
	_ driving.TaskService = (*TaskDispatcher)(nil)
	_ driving.TaskHandler = (*promptTask)(nil)
	_ driving.TaskHandler = (*QuestionTask)(nil)
)

const (
	// taskExcerptSize and taskExcerptOverlap configure the excerpt splitter.
	taskExcerptSize    = 4000
	taskExcerptOverlap = 200

	// maxTaskContent bounds the content placed in a task prompt.
	maxTaskContent = 8000

	// extractiveSummaryLength bounds the fallback summary.
	extractiveSummaryLength = 200
)

// TaskDispatcher routes tasks to the handler registered for their kind.
type TaskDispatcher struct {
	handlers map[domain.TaskKind]driving.TaskHandler
}

// NewTaskDispatcher creates a dispatcher. Every kind in domain.AllTaskKinds
// must have exactly one handler.
func NewTaskDispatcher(handlers ...driving.TaskHandler) (*TaskDispatcher, error) {
	d := &TaskDispatcher{handlers: make(map[domain.TaskKind]driving.TaskHandler, len(handlers))}
	for _, h := range handlers {
		if _, dup := d.handlers[h.Kind()]; dup {
			return nil, fmt.Errorf("%w: duplicate handler for task %q", domain.ErrInvalidInput, h.Kind())
		}
		d.handlers[h.Kind()] = h
	}
	for _, k := range domain.AllTaskKinds() {
		if _, ok := d.handlers[k]; !ok {
			return nil, fmt.Errorf("%w: no handler for task %q", domain.ErrInvalidInput, k)
		}
	}
	return d, nil
}

// Run executes the task named by in.Kind.
func (d *TaskDispatcher) Run(ctx context.Context, in domain.TaskInput) (domain.TaskResult, error) {
	h, ok := d.handlers[in.Kind]
	if !ok {
		return domain.TaskResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownTaskKind, in.Kind)
	}
	logger.Section("Task " + in.Kind.String())
	res := h.Execute(ctx, in)
	res.Kind = in.Kind
	logger.Debug("task %s finished with outcome %s", in.Kind, res.Outcome)
	return res, nil
}

// DefaultTaskHandlers returns a handler for every task kind.
func DefaultTaskHandlers(llm driven.LLMService, prompts driven.PromptStore, rag driving.RAGService) []driving.TaskHandler {
	return []driving.TaskHandler{
		NewSummaryTask(llm, prompts),
		NewAuthorTask(llm, prompts),
		NewRecommendationTask(llm, prompts),
		NewQuestionTask(rag),
	}
}

// promptTask renders a prompt template over the task input and asks the
// LLM for a JSON reply.
type promptTask struct {
	kind        domain.TaskKind
	prompt      string
	excerpts    int
	maxTokens   int
	temperature float64
	validate    func(domain.TaskInput) error

	llm     driven.LLMService
	prompts driven.PromptStore
}

// NewSummaryTask summarises a book from its first five excerpts.
func NewSummaryTask(llm driven.LLMService, prompts driven.PromptStore) driving.TaskHandler {
	return &promptTask{
		kind:        domain.TaskSummary,
		prompt:      driven.PromptTaskSummary,
		excerpts:    5,
		maxTokens:   2000,
		temperature: 0.3,
		validate:    requireContent,
		llm:         llm,
		prompts:     prompts,
	}
}

// NewAuthorTask researches the author of a book.
func NewAuthorTask(llm driven.LLMService, prompts driven.PromptStore) driving.TaskHandler {
	return &promptTask{
		kind:        domain.TaskAuthorResearch,
		prompt:      driven.PromptTaskAuthor,
		maxTokens:   1500,
		temperature: 0.4,
		validate: func(in domain.TaskInput) error {
			if strings.TrimSpace(in.Author) == "" {
				return fmt.Errorf("%w: author is required", domain.ErrInvalidInput)
			}
			return nil
		},
		llm:     llm,
		prompts: prompts,
	}
}

// NewRecommendationTask recommends related books from the first three excerpts.
func NewRecommendationTask(llm driven.LLMService, prompts driven.PromptStore) driving.TaskHandler {
	return &promptTask{
		kind:        domain.TaskRecommendation,
		prompt:      driven.PromptTaskRecommendation,
		excerpts:    3,
		maxTokens:   2000,
		temperature: 0.6,
		validate: func(in domain.TaskInput) error {
			if strings.TrimSpace(in.Content) == "" && strings.TrimSpace(in.Title) == "" {
				return fmt.Errorf("%w: title or content is required", domain.ErrInvalidInput)
			}
			return nil
		},
		llm:     llm,
		prompts: prompts,
	}
}

func requireContent(in domain.TaskInput) error {
	if strings.TrimSpace(in.Content) == "" {
		return fmt.Errorf("%w: content is required", domain.ErrInvalidInput)
	}
	return nil
}

func (t *promptTask) Kind() domain.TaskKind {
	return t.kind
}

func (t *promptTask) Execute(ctx context.Context, in domain.TaskInput) domain.TaskResult {
	res := domain.TaskResult{Kind: t.kind}
	if err := t.validate(in); err != nil {
		res.Outcome = domain.OutcomeFailed
		res.Error = err.Error()
		return res
	}

	content, err := t.excerpt(in.Content)
	if err != nil {
		logger.Warn("task %s: split content: %v", t.kind, err)
		content = truncateRunes(in.Content, maxTaskContent)
	}

	prompt := renderPrompt(loadPrompt(t.prompts, t.prompt), map[string]string{
		"title":   in.Title,
		"author":  in.Author,
		"content": content,
	})

	reply, err := t.generate(ctx, prompt)
	if err != nil {
		logger.Warn("task %s: generation failed, using extractive summary: %v", t.kind, err)
		res.Outcome = domain.OutcomeDegraded
		res.Text = summarizeText(in.Content, extractiveSummaryLength)
		res.Error = err.Error()
		return res
	}

	res.Outcome = domain.OutcomeSuccess
	res.Text = reply
	res.Data = parseJSONReply(reply)
	return res
}

func (t *promptTask) generate(ctx context.Context, prompt string) (string, error) {
	if t.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	reply, err := t.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   t.maxTokens,
		Temperature: t.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", domain.ErrGenerationFailed)
	}
	return reply, nil
}

// excerpt joins the leading excerpts of content, bounded by maxTaskContent.
func (t *promptTask) excerpt(content string) (string, error) {
	if t.excerpts <= 0 || content == "" {
		return truncateRunes(content, maxTaskContent), nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(taskExcerptSize),
		textsplitter.WithChunkOverlap(taskExcerptOverlap),
	)
	parts, err := splitter.SplitText(content)
	if err != nil {
		return "", err
	}
	if len(parts) > t.excerpts {
		parts = parts[:t.excerpts]
	}
	return truncateRunes(strings.Join(parts, "\n\n"), maxTaskContent), nil
}

// QuestionTask answers a question through the RAG orchestrator.
type QuestionTask struct {
	rag driving.RAGService
}

// NewQuestionTask creates the question handler.
func NewQuestionTask(rag driving.RAGService) *QuestionTask {
	return &QuestionTask{rag: rag}
}

// Kind returns domain.TaskQuestion.
func (t *QuestionTask) Kind() domain.TaskKind {
	return domain.TaskQuestion
}

// Execute answers in.Query, scoped to in.DocumentID when set.
func (t *QuestionTask) Execute(ctx context.Context, in domain.TaskInput) domain.TaskResult {
	res := domain.TaskResult{Kind: domain.TaskQuestion}
	ans, err := t.rag.Answer(ctx, domain.AnswerRequest{Query: in.Query, DocumentID: in.DocumentID})
	if err != nil {
		res.Outcome = domain.OutcomeFailed
		res.Error = err.Error()
		return res
	}
	res.Outcome = ans.Outcome
	res.Text = ans.Answer
	res.Data = map[string]any{
		"confidence": ans.Confidence,
		"model_used": ans.ModelUsed,
		"chunks":     len(ans.Context),
	}
	if ans.Err != nil {
		res.Error = ans.Err.Error()
	}
	return res
}

// parseJSONReply extracts the outermost JSON object of a model reply.
// Replies that are not JSON yield nil.
func parseJSONReply(reply string) map[string]any {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &data); err != nil {
		return nil
	}
	return data
}

var summarySentenceEnd = regexp.MustCompile(`[。！？.!?]\s*`)

// summarizeText builds an extractive summary from the leading sentences
// of text, bounded by maxLen runes.
func summarizeText(text string, maxLen int) string {
	if text == "" || utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	sentences := summarySentenceEnd.Split(text, -1)
	if len(sentences) <= 1 {
		return truncateRunes(text, maxLen) + "..."
	}

	var summary string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if utf8.RuneCountInString(summary)+utf8.RuneCountInString(s)+1 > maxLen {
			break
		}
		if summary == "" {
			summary = s
		} else {
			summary += "。" + s
		}
	}
	if summary == "" {
		return truncateRunes(text, maxLen) + "..."
	}
	if !strings.ContainsAny(lastRune(summary), "。！？.!?") {
		summary += "。"
	}
	return summary
}

func lastRune(s string) string {
	if s == "" {
		return ""
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return string(r)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
