package driving

import (
	"context"

	"github.com/custodia-labs/libris/internal/core/domain"
)

// TaskHandler executes one kind of book analysis task.
type TaskHandler interface {
	// Kind returns the task kind this handler serves.
	Kind() domain.TaskKind

	// Execute runs the task. Failures are reported in the result outcome.
	Execute(ctx context.Context, in domain.TaskInput) domain.TaskResult
}

// TaskService dispatches tasks to their handlers.
type TaskService interface {
	// Run executes the task named by in.Kind.
	// Returns domain.ErrUnknownTaskKind for kinds outside the closed set.
	Run(ctx context.Context, in domain.TaskInput) (domain.TaskResult, error)
}
