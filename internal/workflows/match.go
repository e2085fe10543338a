package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
)

// MatchInput is the input for the match workflow.
type MatchInput struct {
	PostID   string
	HelperID string
}

// MatchWorkflow accepts a post for a helper, opens the tracking session and
// announces the match. If the session cannot be opened the acceptance is
// withdrawn (saga compensation). A failed announcement does not undo the match.
func MatchWorkflow(ctx workflow.Context, input MatchInput) (domain.Match, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting match workflow", "post", input.PostID, "helper", input.HelperID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)
	runID := workflow.GetInfo(ctx).WorkflowExecution.RunID
	accept := AcceptInput{PostID: input.PostID, RunID: runID}

	// Step 1: Resolve the requester location
	var target MatchTarget
	if err := workflow.ExecuteActivity(ctx, "ResolveTarget", input.PostID).Get(ctx, &target); err != nil {
		return domain.Match{}, err
	}

	// Step 2: Accept the post
	if err := workflow.ExecuteActivity(ctx, "AcceptPost", accept).Get(ctx, nil); err != nil {
		return domain.Match{}, err
	}

	// Step 3: Open the tracking session
	var sessionID string
	if err := workflow.ExecuteActivity(ctx, "OpenSession", OpenSessionInput{RunID: runID, Requester: target.Requester}).Get(ctx, &sessionID); err != nil {
		logger.Warn("open session failed, compensating", "error", err)
		// Compensate: withdraw the acceptance
		_ = workflow.ExecuteActivity(ctx, "WithdrawPost", accept).Get(ctx, nil)
		return domain.Match{}, err
	}

	m := domain.Match{
		ID:        runID,
		PostID:    input.PostID,
		HelperID:  input.HelperID,
		SessionID: sessionID,
		Requester: target.Requester,
		Address:   target.Address,
		MatchedAt: workflow.Now(ctx).UTC(),
	}

	// Step 4: Announce
	if err := workflow.ExecuteActivity(ctx, "PublishMatch", m).Get(ctx, nil); err != nil {
		logger.Warn("match announcement failed", "match", m.ID, "error", err)
	}

	logger.Info("Match completed", "session", sessionID)
	return m, nil
}
