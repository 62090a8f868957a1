// Package workflow manages the draft-entry lifecycle on top of branches,
// merge requests and labels: open, update, relabel, publish, delete. Each
// draft lives on its own branch with one open merge request against the
// base branch; the editorial status is a single prefixed label on that
// merge request.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/xanzy/go-gitlab"

	"github.com/inkcms/gitbridge/internal/client"
	"github.com/inkcms/gitbridge/internal/preview"
	"github.com/inkcms/gitbridge/internal/repo"
)

// Status is the editorial state of a draft entry.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusReview Status = "review"
	StatusReady  Status = "ready"
)

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusDraft, StatusReview, StatusReady:
		return Status(raw), nil
	}
	return "", fmt.Errorf("unknown workflow status %q", raw)
}

// ContentKey identifies one draft entry.
type ContentKey struct {
	Collection string
	Slug       string
}

func (k ContentKey) String() string {
	return k.Collection + "/" + k.Slug
}

// BranchName maps a content key to its entry branch. Both components are
// path-escaped, so distinct keys never collide and the mapping inverts
// exactly.
func BranchName(prefix string, key ContentKey) string {
	return prefix + "/" + url.PathEscape(key.Collection) + "/" + url.PathEscape(key.Slug)
}

// KeyFromBranch inverts BranchName. The second result is false for branches
// outside the entry namespace.
func KeyFromBranch(prefix, branch string) (ContentKey, bool) {
	rest, ok := strings.CutPrefix(branch, prefix+"/")
	if !ok {
		return ContentKey{}, false
	}
	collection, slug, ok := strings.Cut(rest, "/")
	if !ok {
		return ContentKey{}, false
	}
	c, err := url.PathUnescape(collection)
	if err != nil {
		return ContentKey{}, false
	}
	s, err := url.PathUnescape(slug)
	if err != nil {
		return ContentKey{}, false
	}
	return ContentKey{Collection: c, Slug: s}, true
}

// ErrNotUnderWorkflow reports that no open merge request exists for a
// branch expected to carry one. Recoverable, distinct from a hard failure.
var ErrNotUnderWorkflow = errors.New("entry is not under editorial workflow")

// Entry is one open draft.
type Entry struct {
	Key       ContentKey
	Branch    string
	Status    Status
	HeadSHA   string
	Title     string
	IID       int
	UpdatedAt time.Time
}

// Fixed texts attached to the artifacts the engine creates.
const (
	prBody             = "Automatically generated: content entry awaiting editorial review."
	mergeCommitMessage = "Automatically generated: content entry published."
)

// Settings is the engine's read-only configuration.
type Settings struct {
	BaseBranch    string
	BranchPrefix  string
	LabelPrefix   string
	InitialStatus Status
	SquashMerges  bool
}

// Engine drives the draft lifecycle for one repository.
type Engine struct {
	cl    *client.Client
	store *repo.Service
	set   Settings

	pollInterval time.Duration
	pollAttempts int
	timer        backoff.Timer

	log *logrus.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithPollInterval sets the rebase poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// WithPollAttempts sets the rebase poll attempt budget.
func WithPollAttempts(n int) Option {
	return func(e *Engine) { e.pollAttempts = n }
}

// WithTimer injects the timer driving poll waits (for testing).
func WithTimer(t backoff.Timer) Option {
	return func(e *Engine) { e.timer = t }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an engine over the given client and commit/tree service.
func New(cl *client.Client, store *repo.Service, set Settings, opts ...Option) *Engine {
	e := &Engine{
		cl:           cl,
		store:        store,
		set:          set,
		pollInterval: time.Second,
		pollAttempts: 10,
		log:          cl.Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) branchFor(key ContentKey) string {
	return BranchName(e.set.BranchPrefix, key)
}

func (e *Engine) statusLabel(st Status) string {
	return e.set.LabelPrefix + string(st)
}

// statusOf extracts the editorial status from a merge request's labels.
func (e *Engine) statusOf(labels gitlab.Labels) (Status, bool) {
	for _, l := range labels {
		if raw, ok := strings.CutPrefix(l, e.set.LabelPrefix); ok {
			if st, err := ParseStatus(raw); err == nil {
				return st, true
			}
		}
	}
	return "", false
}

func (e *Engine) entryFromMR(mr *gitlab.MergeRequest) Entry {
	key, _ := KeyFromBranch(e.set.BranchPrefix, mr.SourceBranch)
	st, _ := e.statusOf(mr.Labels)
	entry := Entry{
		Key:     key,
		Branch:  mr.SourceBranch,
		Status:  st,
		HeadSHA: mr.SHA,
		Title:   mr.Title,
		IID:     mr.IID,
	}
	if mr.UpdatedAt != nil {
		entry.UpdatedAt = *mr.UpdatedAt
	}
	return entry
}

// find locates the open merge request of a draft entry.
func (e *Engine) find(ctx context.Context, key ContentKey) (*gitlab.MergeRequest, error) {
	branch := e.branchFor(key)
	mrs, resp, err := e.cl.Raw().MergeRequests.ListProjectMergeRequests(e.cl.Project(), &gitlab.ListProjectMergeRequestsOptions{
		State:        gitlab.Ptr("opened"),
		SourceBranch: gitlab.Ptr(branch),
		TargetBranch: gitlab.Ptr(e.set.BaseBranch),
	}, e.cl.Options(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("locating merge request for %s: %w", branch, client.APIErrorFrom(resp, err))
	}

	for _, mr := range mrs {
		if _, ok := e.statusOf(mr.Labels); ok {
			return mr, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", key, ErrNotUnderWorkflow)
}

// Open creates a draft: a new branch off base carrying the entry's first
// commit, and an open merge request labeled with the initial status.
func (e *Engine) Open(ctx context.Context, key ContentKey, files []repo.File, message string) (*Entry, error) {
	branch := e.branchFor(key)

	items, err := e.store.BuildCommitItems(ctx, files, e.set.BaseBranch)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.SubmitCommit(ctx, items, message, branch, nil, true); err != nil {
		return nil, err
	}

	labels := gitlab.LabelOptions{e.statusLabel(e.set.InitialStatus)}
	mr, resp, err := e.cl.Raw().MergeRequests.CreateMergeRequest(e.cl.Project(), &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(message),
		Description:  gitlab.Ptr(prBody),
		SourceBranch: gitlab.Ptr(branch),
		TargetBranch: gitlab.Ptr(e.set.BaseBranch),
		Labels:       &labels,
	}, e.cl.Options(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("opening merge request for %s: %w", branch, client.APIErrorFrom(resp, err))
	}

	e.log.WithFields(logrus.Fields{"entry": key.String(), "branch": branch, "mr": mr.IID}).Info("draft opened")

	entry := e.entryFromMR(mr)
	return &entry, nil
}

// Update saves new content to an existing draft. The entry branch is
// rebased onto the current base first; binary files present in the previous
// diff but absent from the incoming file set are deleted, since their
// removal cannot be read off a content diff.
func (e *Engine) Update(ctx context.Context, key ContentKey, files []repo.File, message string) (*Entry, error) {
	mr, err := e.find(ctx, key)
	if err != nil {
		return nil, err
	}
	branch := mr.SourceBranch

	if err := e.rebase(ctx, branch, mr.IID); err != nil {
		return nil, err
	}

	diffs, err := e.diffBranch(ctx, branch)
	if err != nil {
		return nil, err
	}

	items, err := e.store.BuildCommitItems(ctx, files, branch)
	if err != nil {
		return nil, err
	}

	kept := make(map[string]bool, len(files))
	for _, f := range files {
		kept[strings.TrimPrefix(f.Path, "/")] = true
		if f.NewPath != "" {
			kept[strings.TrimPrefix(f.NewPath, "/")] = true
		}
	}
	for _, d := range diffs {
		if d.Binary && !kept[d.NewPath] {
			items = append(items, repo.CommitItem{Action: repo.ActionDelete, Path: d.NewPath})
		}
	}

	if _, err := e.store.SubmitCommit(ctx, items, message, branch, nil, false); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"entry": key.String(), "branch": branch, "mr": mr.IID}).Info("draft updated")

	entry := e.entryFromMR(mr)
	return &entry, nil
}

// SetStatus replaces the status label, preserving every other label.
func (e *Engine) SetStatus(ctx context.Context, key ContentKey, st Status) (*Entry, error) {
	mr, err := e.find(ctx, key)
	if err != nil {
		return nil, err
	}

	labels := gitlab.LabelOptions{}
	for _, l := range mr.Labels {
		if !strings.HasPrefix(l, e.set.LabelPrefix) {
			labels = append(labels, l)
		}
	}
	labels = append(labels, e.statusLabel(st))

	updated, resp, err := e.cl.Raw().MergeRequests.UpdateMergeRequest(e.cl.Project(), mr.IID, &gitlab.UpdateMergeRequestOptions{
		Labels: &labels,
	}, e.cl.Options(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("relabeling merge request %d: %w", mr.IID, client.APIErrorFrom(resp, err))
	}

	entry := e.entryFromMR(updated)
	return &entry, nil
}

// Publish merges the draft's merge request and removes its branch.
func (e *Engine) Publish(ctx context.Context, key ContentKey) error {
	mr, err := e.find(ctx, key)
	if err != nil {
		return err
	}

	_, resp, err := e.cl.Raw().MergeRequests.AcceptMergeRequest(e.cl.Project(), mr.IID, &gitlab.AcceptMergeRequestOptions{
		MergeCommitMessage:       gitlab.Ptr(mergeCommitMessage),
		Squash:                   gitlab.Ptr(e.set.SquashMerges),
		ShouldRemoveSourceBranch: gitlab.Ptr(true),
	}, e.cl.Options(ctx)...)
	if err != nil {
		return fmt.Errorf("merging %s: %w", mr.SourceBranch, client.APIErrorFrom(resp, err))
	}

	e.log.WithFields(logrus.Fields{"entry": key.String(), "mr": mr.IID}).Info("draft published")
	return nil
}

// Delete closes the draft's merge request without merging, then deletes
// its branch.
func (e *Engine) Delete(ctx context.Context, key ContentKey) error {
	mr, err := e.find(ctx, key)
	if err != nil {
		return err
	}

	_, resp, err := e.cl.Raw().MergeRequests.UpdateMergeRequest(e.cl.Project(), mr.IID, &gitlab.UpdateMergeRequestOptions{
		StateEvent: gitlab.Ptr("close"),
	}, e.cl.Options(ctx)...)
	if err != nil {
		return fmt.Errorf("closing merge request %d: %w", mr.IID, client.APIErrorFrom(resp, err))
	}

	if err := e.store.DeleteBranch(ctx, mr.SourceBranch); err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{"entry": key.String(), "mr": mr.IID}).Info("draft deleted")
	return nil
}

// Statuses fetches the external CI statuses attached to the draft's head
// commit, normalized for preview display.
func (e *Engine) Statuses(ctx context.Context, key ContentKey) ([]preview.Check, error) {
	mr, err := e.find(ctx, key)
	if err != nil {
		return nil, err
	}

	statuses, resp, err := e.cl.Raw().Commits.GetCommitStatuses(e.cl.Project(), mr.SHA, &gitlab.GetCommitStatusesOptions{
		All: gitlab.Ptr(true),
	}, e.cl.Options(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("fetching statuses of %s: %w", mr.SHA, client.APIErrorFrom(resp, err))
	}

	checks := make([]preview.Check, len(statuses))
	for i, s := range statuses {
		checks[i] = preview.FromCommitStatus(s)
	}
	return checks, nil
}

// Get returns the draft entry for a content key.
func (e *Engine) Get(ctx context.Context, key ContentKey) (*Entry, error) {
	mr, err := e.find(ctx, key)
	if err != nil {
		return nil, err
	}
	entry := e.entryFromMR(mr)
	return &entry, nil
}

// ListEntries enumerates all open drafts.
func (e *Engine) ListEntries(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	page := 1
	for {
		mrs, resp, err := e.cl.Raw().MergeRequests.ListProjectMergeRequests(e.cl.Project(), &gitlab.ListProjectMergeRequestsOptions{
			ListOptions:  gitlab.ListOptions{Page: page, PerPage: 100},
			State:        gitlab.Ptr("opened"),
			TargetBranch: gitlab.Ptr(e.set.BaseBranch),
		}, e.cl.Options(ctx)...)
		if err != nil {
			return nil, fmt.Errorf("listing drafts: %w", client.APIErrorFrom(resp, err))
		}

		for _, mr := range mrs {
			if _, ok := KeyFromBranch(e.set.BranchPrefix, mr.SourceBranch); !ok {
				continue
			}
			if _, ok := e.statusOf(mr.Labels); !ok {
				continue
			}
			entries = append(entries, e.entryFromMR(mr))
		}

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	return entries, nil
}
