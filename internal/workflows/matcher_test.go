package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
)

func TestTemporalMatcher_AlreadyMatchingIsConflict(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything,
		mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
			return o.ID == "match-p1" && o.WorkflowExecutionErrorWhenAlreadyStarted
		}),
		mock.Anything, mock.Anything,
	).Return(nil, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "", "run-1"))

	_, err := NewTemporalMatcher(c, "matches").Match(context.Background(), "p1", "h1")
	assert.True(t, errors.Is(err, domain.ErrMatchInProgress), "got %v", err)
	c.AssertExpectations(t)
}

func TestTemporalMatcher_RejectsEmptyHelper(t *testing.T) {
	c := &mocks.Client{}

	_, err := NewTemporalMatcher(c, "matches").Match(context.Background(), "p1", "  ")
	assert.Error(t, err)
	c.AssertNotCalled(t, "ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
