package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xanzy/go-gitlab"

	"github.com/inkcms/gitbridge/internal/client"
)

// ChangeKind classifies one changed path.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"
)

// DiffEntry is one changed path between the entry branch and the base.
type DiffEntry struct {
	OldPath string
	NewPath string
	Kind    ChangeKind
	Binary  bool
}

// diffLimit caps the number of changed paths a comparison may report.
// Full-repository diffs are not feasible to process.
const diffLimit = 1000

// ErrDiffTooLarge reports a comparison past the changed-path ceiling.
var ErrDiffTooLarge = errors.New("diff limit reached")

// Diff compares the entry branch of a content key against the base branch.
func (e *Engine) Diff(ctx context.Context, key ContentKey) ([]DiffEntry, error) {
	return e.diffBranch(ctx, e.branchFor(key))
}

func (e *Engine) diffBranch(ctx context.Context, branch string) ([]DiffEntry, error) {
	cmp, resp, err := e.cl.Raw().Repositories.Compare(e.cl.Project(), &gitlab.CompareOptions{
		From: gitlab.Ptr(e.set.BaseBranch),
		To:   gitlab.Ptr(branch),
	}, e.cl.Options(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("comparing %s...%s: %w", e.set.BaseBranch, branch, client.APIErrorFrom(resp, err))
	}

	if len(cmp.Diffs) >= diffLimit {
		return nil, fmt.Errorf("comparing %s...%s (%d changed paths): %w", e.set.BaseBranch, branch, len(cmp.Diffs), ErrDiffTooLarge)
	}

	entries := make([]DiffEntry, len(cmp.Diffs))
	for i, d := range cmp.Diffs {
		kind := ChangeModified
		switch {
		case d.NewFile:
			kind = ChangeAdded
		case d.DeletedFile:
			kind = ChangeDeleted
		case d.RenamedFile:
			kind = ChangeRenamed
		}
		entries[i] = DiffEntry{
			OldPath: d.OldPath,
			NewPath: d.NewPath,
			Kind:    kind,
			Binary:  isBinaryDiff(d),
		}
	}
	return entries, nil
}

// isBinaryDiff reports whether a diff entry carries binary content: the raw
// patch is marked binary, or the path names an SVG. Vector images arrive as
// text patches, so the marker alone misses them; only the .svg extension is
// recognized today, other text-encoded image formats are not.
func isBinaryDiff(d *gitlab.Diff) bool {
	if strings.HasPrefix(d.Diff, "Binary files ") || strings.Contains(d.Diff, "GIT binary patch") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(d.NewPath), ".svg")
}
