package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/xanzy/go-gitlab"

	"github.com/inkcms/gitbridge/internal/client"
)

// ErrRebaseTimeout reports a rebase still in progress after the poll
// attempt budget was spent.
var ErrRebaseTimeout = errors.New("rebase did not complete in time")

// RebaseConflictError reports a merge conflict surfaced while rebasing.
type RebaseConflictError struct {
	Branch  string
	Message string
}

func (e *RebaseConflictError) Error() string {
	return fmt.Sprintf("rebase of %s hit a conflict: %s", e.Branch, e.Message)
}

var errRebaseInProgress = errors.New("rebase in progress")

// rebase puts the entry branch onto the current base branch, then polls the
// rebase status at a fixed interval. A reported merge error fails
// immediately; an in-progress rebase past the attempt budget times out.
func (e *Engine) rebase(ctx context.Context, branch string, iid int) error {
	resp, err := e.cl.Raw().MergeRequests.RebaseMergeRequest(e.cl.Project(), iid, nil, e.cl.Options(ctx)...)
	if err != nil {
		return fmt.Errorf("rebasing %s: %w", branch, client.APIErrorFrom(resp, err))
	}

	poll := func() error {
		mr, resp, err := e.cl.Raw().MergeRequests.GetMergeRequest(e.cl.Project(), iid, &gitlab.GetMergeRequestsOptions{
			IncludeRebaseInProgress: gitlab.Ptr(true),
		}, e.cl.Options(ctx)...)
		if err != nil {
			return backoff.Permanent(client.APIErrorFrom(resp, err))
		}
		if mr.MergeError != "" {
			return backoff.Permanent(&RebaseConflictError{Branch: branch, Message: mr.MergeError})
		}
		if mr.RebaseInProgress {
			return errRebaseInProgress
		}
		return nil
	}

	// pollAttempts total polls: the initial one plus pollAttempts-1 retries.
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.pollInterval), uint64(e.pollAttempts-1)),
		ctx,
	)

	if e.timer != nil {
		err = backoff.RetryNotifyWithTimer(poll, policy, nil, e.timer)
	} else {
		err = backoff.Retry(poll, policy)
	}
	if err != nil {
		if errors.Is(err, errRebaseInProgress) {
			return fmt.Errorf("rebasing %s: %w", branch, ErrRebaseTimeout)
		}
		return fmt.Errorf("rebasing %s: %w", branch, err)
	}
	return nil
}
