package repo

import (
	"context"
	"encoding/base64"
	"fmt"
	gopath "path"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xanzy/go-gitlab"
	"golang.org/x/sync/errgroup"

	"github.com/inkcms/gitbridge/internal/client"
)

// ItemAction classifies one file-level change in a commit batch.
type ItemAction string

const (
	ActionCreate ItemAction = "create"
	ActionUpdate ItemAction = "update"
	ActionDelete ItemAction = "delete"
	ActionMove   ItemAction = "move"
)

// CommitItem is one queued file change. Content is base64-encoded; a batch
// of items is submitted as a single atomic commit.
type CommitItem struct {
	Action       ItemAction
	Path         string
	PreviousPath string
	Content      string
}

// File is an input file to persist. NewPath, when set and different from
// Path, requests a rename.
type File struct {
	Path    string
	NewPath string
	Content []byte
}

// CommitAuthor overrides the commit author.
type CommitAuthor struct {
	Name  string
	Email string
}

// CommitResult describes a landed commit.
type CommitResult struct {
	SHA      string
	ShortSHA string
	Title    string
}

// BranchConflictError reports that a branch the operation wanted to create
// already exists with diverging history.
type BranchConflictError struct {
	Branch string
}

func (e *BranchConflictError) Error() string {
	return fmt.Sprintf("branch %s already exists with diverging history", e.Branch)
}

// BuildCommitItems classifies each input file against branch. Existence
// checks are independent and run concurrently; directory-move expansion
// depends on the classification and runs as a second pass.
func (s *Service) BuildCommitItems(ctx context.Context, files []File, branch string) ([]CommitItem, error) {
	items := make([]CommitItem, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		i := i
		f := files[i]
		g.Go(func() error {
			exists, err := s.FileExists(gctx, f.Path, branch)
			if err != nil {
				return err
			}
			items[i] = classifyFile(f, exists)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.expandDirectoryMoves(ctx, items, branch)
}

func classifyFile(f File, exists bool) CommitItem {
	item := CommitItem{
		Action:  ActionCreate,
		Path:    strings.TrimPrefix(f.Path, "/"),
		Content: base64.StdEncoding.EncodeToString(f.Content),
	}
	if !exists {
		return item
	}

	if f.NewPath != "" && f.NewPath != f.Path {
		item.Action = ActionMove
		item.PreviousPath = item.Path
		item.Path = strings.TrimPrefix(f.NewPath, "/")
	} else {
		item.Action = ActionUpdate
	}
	return item
}

// expandDirectoryMoves queues a move for every descendant file of a moved
// directory, rewriting the old prefix to the new one. The moved set
// deduplicates previous paths so overlapping prefixes are not handled twice.
func (s *Service) expandDirectoryMoves(ctx context.Context, items []CommitItem, branch string) ([]CommitItem, error) {
	moved := make(map[string]bool)
	for _, item := range items {
		if item.Action == ActionMove {
			moved[item.PreviousPath] = true
		}
	}

	expanded := append([]CommitItem(nil), items...)
	for _, item := range items {
		if item.Action != ActionMove {
			continue
		}

		oldDir := gopath.Dir(item.PreviousPath)
		newDir := gopath.Dir(item.Path)
		if oldDir == newDir || oldDir == "." {
			continue
		}

		descendants, err := s.ListAllFiles(ctx, oldDir, branch, true)
		if err != nil {
			return nil, fmt.Errorf("expanding directory move %s -> %s: %w", oldDir, newDir, err)
		}
		for _, d := range descendants {
			if moved[d.Path] {
				continue
			}
			moved[d.Path] = true
			expanded = append(expanded, CommitItem{
				Action:       ActionMove,
				Path:         newDir + strings.TrimPrefix(d.Path, oldDir),
				PreviousPath: d.Path,
			})
		}
	}

	return expanded, nil
}

// SubmitCommit lands all items as one atomic commit on branch. With
// createBranch the branch is created from the base branch first; if that
// fails because the branch already exists, the conflict is surfaced as a
// *BranchConflictError.
func (s *Service) SubmitCommit(ctx context.Context, items []CommitItem, message, branch string, author *CommitAuthor, createBranch bool) (*CommitResult, error) {
	opt := &gitlab.CreateCommitOptions{
		Branch:        gitlab.Ptr(branch),
		CommitMessage: gitlab.Ptr(message),
		Actions:       commitActions(items),
	}
	if createBranch {
		opt.StartBranch = gitlab.Ptr(s.base)
	}
	if author != nil {
		opt.AuthorName = gitlab.Ptr(author.Name)
		opt.AuthorEmail = gitlab.Ptr(author.Email)
	}

	commit, resp, err := s.cl.Raw().Commits.CreateCommit(s.cl.Project(), opt, s.cl.Options(ctx)...)
	if err != nil {
		if createBranch && strings.Contains(strings.ToLower(err.Error()), "already exists") {
			if exists, probeErr := s.BranchExists(ctx, branch); probeErr == nil && exists {
				return nil, &BranchConflictError{Branch: branch}
			}
		}
		return nil, fmt.Errorf("committing %d items to %s: %w", len(items), branch, client.APIErrorFrom(resp, err))
	}

	s.log.WithFields(logrus.Fields{
		"branch": branch,
		"commit": commit.ShortID,
		"items":  len(items),
	}).Info("commit submitted")

	return &CommitResult{SHA: commit.ID, ShortSHA: commit.ShortID, Title: commit.Title}, nil
}

// DeleteFiles commits the removal of all paths from the base branch.
func (s *Service) DeleteFiles(ctx context.Context, paths []string, message string) (*CommitResult, error) {
	items := make([]CommitItem, len(paths))
	for i, p := range paths {
		items[i] = CommitItem{Action: ActionDelete, Path: strings.TrimPrefix(p, "/")}
	}
	return s.SubmitCommit(ctx, items, message, s.base, nil, false)
}

func commitActions(items []CommitItem) []*gitlab.CommitActionOptions {
	actions := make([]*gitlab.CommitActionOptions, len(items))
	for i, item := range items {
		action := &gitlab.CommitActionOptions{
			Action:   gitlab.Ptr(gitlab.FileActionValue(item.Action)),
			FilePath: gitlab.Ptr(item.Path),
		}
		if item.PreviousPath != "" {
			action.PreviousPath = gitlab.Ptr(item.PreviousPath)
		}
		switch item.Action {
		case ActionCreate, ActionUpdate:
			action.Content = gitlab.Ptr(item.Content)
			action.Encoding = gitlab.Ptr("base64")
		case ActionMove:
			// Content is optional on a move; the service keeps the old
			// blob when none is sent.
			if item.Content != "" {
				action.Content = gitlab.Ptr(item.Content)
				action.Encoding = gitlab.Ptr("base64")
			}
		}
		actions[i] = action
	}
	return actions
}
