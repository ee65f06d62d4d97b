package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/msato/dayplan/internal/model"
)

// consoleApprover runs the approval conversation on a terminal. A
// rejection is not accepted until feedback is typed.
type consoleApprover struct {
	in  io.Reader
	out io.Writer
}

func (a *consoleApprover) PresentPlan(ctx context.Context, plan model.Plan, rendering string) (model.ApprovalResult, error) {
	fmt.Fprintln(a.out, rendering)
	return a.decide("Approve this plan?")
}

func (a *consoleApprover) PresentSubtasks(ctx context.Context, parent model.WorkItem, specs []model.SubtaskSpec, rendering string) (model.ApprovalResult, error) {
	fmt.Fprintln(a.out, rendering)
	return a.decide(fmt.Sprintf("Create these %d subtasks?", len(specs)))
}

func (a *consoleApprover) decide(prompt string) (model.ApprovalResult, error) {
	reader := bufio.NewReader(a.in)

	for {
		fmt.Fprintf(a.out, "%s [y/n]: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return model.ApprovalResult{Expired: true}, nil
			}
			return model.ApprovalResult{}, fmt.Errorf("read answer: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return model.ApprovalResult{Approved: true}, nil
		case "n", "no":
			feedback, err := a.readFeedback(reader)
			if err != nil {
				return model.ApprovalResult{}, err
			}
			return model.ApprovalResult{Approved: false, Feedback: &feedback}, nil
		default:
			fmt.Fprintln(a.out, "please answer y or n")
		}
	}
}

func (a *consoleApprover) readFeedback(reader *bufio.Reader) (string, error) {
	for {
		fmt.Fprint(a.out, "Feedback (required for rejection): ")
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read feedback: %w", err)
		}
		feedback := strings.TrimSpace(line)
		if feedback != "" {
			return feedback, nil
		}
		if err == io.EOF {
			return "", fmt.Errorf("rejection requires feedback")
		}
		fmt.Fprintln(a.out, "feedback cannot be empty")
	}
}

// deferredApprover backs the background runner: no terminal is
// attached, so every presentation expires and the plan waits for
// 'dayplan approve' or 'dayplan reject'.
type deferredApprover struct{}

func (deferredApprover) PresentPlan(ctx context.Context, plan model.Plan, rendering string) (model.ApprovalResult, error) {
	return model.ApprovalResult{Expired: true}, nil
}

func (deferredApprover) PresentSubtasks(ctx context.Context, parent model.WorkItem, specs []model.SubtaskSpec, rendering string) (model.ApprovalResult, error) {
	return model.ApprovalResult{Expired: true}, nil
}
