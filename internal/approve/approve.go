// Package approve defines the boundary to the approval collaborator and
// persists plans across their lifecycle.
package approve

import (
	"context"
	"errors"

	"github.com/msato/dayplan/internal/model"
)

// Approver presents a proposal and returns the caller's decision. The
// approval collaborator owns timeouts: an expired window comes back as
// Expired=true, which is not an error and leaves the proposal valid for
// re-presentation.
type Approver interface {
	PresentPlan(ctx context.Context, plan model.Plan, rendering string) (model.ApprovalResult, error)
	PresentSubtasks(ctx context.Context, parent model.WorkItem, specs []model.SubtaskSpec, rendering string) (model.ApprovalResult, error)
}

// ErrFeedbackRequired is returned when a rejection arrives without
// feedback; no alternative plan is produced until feedback exists.
var ErrFeedbackRequired = errors.New("rejection requires feedback before an alternative is produced")

// AutoApprover approves everything. It backs non-interactive runs and
// tests.
type AutoApprover struct{}

func (AutoApprover) PresentPlan(ctx context.Context, plan model.Plan, rendering string) (model.ApprovalResult, error) {
	return model.ApprovalResult{Approved: true}, nil
}

func (AutoApprover) PresentSubtasks(ctx context.Context, parent model.WorkItem, specs []model.SubtaskSpec, rendering string) (model.ApprovalResult, error) {
	return model.ApprovalResult{Approved: true}, nil
}
