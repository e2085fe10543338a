package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
)

// TemporalMatcher runs matches as Temporal workflows.
type TemporalMatcher struct {
	client    client.Client
	taskQueue string
}

// NewTemporalMatcher creates a matcher that starts workflows on taskQueue.
func NewTemporalMatcher(c client.Client, taskQueue string) *TemporalMatcher {
	return &TemporalMatcher{client: c, taskQueue: taskQueue}
}

// Match starts the match workflow and waits for its result. A post can only
// have one match in flight; a concurrent attempt fails.
func (m *TemporalMatcher) Match(ctx context.Context, postID, helperID string) (*domain.Match, error) {
	if strings.TrimSpace(helperID) == "" {
		return nil, fmt.Errorf("helper id must not be empty")
	}

	run, err := m.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                                       "match-" + postID,
		TaskQueue:                                m.taskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, MatchWorkflow, MatchInput{PostID: postID, HelperID: helperID})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return nil, fmt.Errorf("post %s: %w", postID, domain.ErrMatchInProgress)
		}
		return nil, fmt.Errorf("start match workflow: %w", err)
	}

	var match domain.Match
	if err := run.Get(ctx, &match); err != nil {
		return nil, domainError(err)
	}
	return &match, nil
}

// NewWorker creates a worker with the match workflow and activities registered.
func NewWorker(c client.Client, taskQueue string, acts *MatchActivities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(MatchWorkflow)
	w.RegisterActivity(acts)
	return w
}
