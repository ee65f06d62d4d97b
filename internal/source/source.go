// Package source defines the boundary to the upstream work-item tracker
// and a directory-backed implementation for local use.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/msato/dayplan/internal/model"
)

// Source is the upstream tracker. Any failure defers planning and
// propagates to the caller unmodified: the engine never fabricates or
// caches items to paper over an outage, and retry policy lives behind
// this interface, not in front of it.
type Source interface {
	FetchActiveItems(ctx context.Context) ([]model.WorkItem, error)
	FetchBlockingItems(ctx context.Context) ([]model.WorkItem, error)
	CreateSubtasks(ctx context.Context, parentID string, specs []model.SubtaskSpec) ([]string, error)
}

var (
	ErrUnavailable  = errors.New("source unavailable")
	ErrAuthFailed   = errors.New("source authentication failed")
	ErrRateLimited  = errors.New("source rate limited")
	ErrInvalidQuery = errors.New("invalid source query")
)

// Failure wraps a collaborator error with its taxonomy class so callers
// can branch on errors.Is while keeping the underlying detail.
func Failure(class error, err error) error {
	if err == nil {
		return class
	}
	return fmt.Errorf("%w: %v", class, err)
}

// IsSourceFailure reports whether err belongs to the source error
// taxonomy.
func IsSourceFailure(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrInvalidQuery)
}
