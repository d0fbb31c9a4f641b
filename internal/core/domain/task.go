package domain

import "fmt"

// TaskKind is the closed set of book analysis tasks.
type TaskKind string

const (
	// TaskSummary summarises a book from excerpts of its content.
	TaskSummary TaskKind = "summary"

	// TaskAuthorResearch produces background on an author.
	TaskAuthorResearch TaskKind = "author_research"

	// TaskRecommendation suggests related reading.
	TaskRecommendation TaskKind = "recommendation"

	// TaskQuestion answers a question over an indexed document.
	TaskQuestion TaskKind = "question"
)

// AllTaskKinds returns every task kind. A dispatcher must handle all of them.
func AllTaskKinds() []TaskKind {
	return []TaskKind{TaskSummary, TaskAuthorResearch, TaskRecommendation, TaskQuestion}
}

// ParseTaskKind converts a string into a TaskKind.
func ParseTaskKind(s string) (TaskKind, error) {
	for _, k := range AllTaskKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTaskKind, s)
}

// String returns the string representation.
func (k TaskKind) String() string {
	return string(k)
}

// TaskInput carries the inputs a task may need. Each kind reads a subset.
type TaskInput struct {
	Kind       TaskKind `json:"kind"`
	DocumentID string   `json:"document_id,omitempty"`
	Title      string   `json:"title,omitempty"`
	Author     string   `json:"author,omitempty"`
	Content    string   `json:"content,omitempty"`
	Query      string   `json:"query,omitempty"`
}

// TaskResult is the output of a task.
type TaskResult struct {
	Kind    TaskKind `json:"kind"`
	Outcome Outcome  `json:"outcome"`
	Text    string   `json:"text"`

	// Data holds the parsed JSON reply when the model returned one.
	Data map[string]any `json:"data,omitempty"`

	Error string `json:"error,omitempty"`
}
