// Package repo implements the commit and tree operations of the adapter:
// listing repository trees through pagination cursors, reading files,
// probing existence, and submitting batched commits.
package repo

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xanzy/go-gitlab"

	"github.com/inkcms/gitbridge/internal/cache"
	"github.com/inkcms/gitbridge/internal/client"
	"github.com/inkcms/gitbridge/internal/cursor"
)

// Entry kinds in a tree listing.
const (
	KindFile      = "file"
	KindDirectory = "directory"
)

// TreeEntry is one entry of a repository tree listing.
type TreeEntry struct {
	ID   string
	Name string
	Path string
	Kind string
}

// Service performs commit and tree operations against one repository.
type Service struct {
	cl    *client.Client
	base  string
	store *cache.Store
	log   *logrus.Logger
}

// Option configures the service.
type Option func(*Service)

// WithCache sets the content-addressed read cache.
func WithCache(store *cache.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// New creates a service committing to baseBranch by default.
func New(cl *client.Client, baseBranch string, opts ...Option) *Service {
	s := &Service{
		cl:   cl,
		base: baseBranch,
		log:  cl.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BaseBranch returns the configured base branch.
func (s *Service) BaseBranch() string {
	return s.base
}

// FileExists probes a path at ref without transferring content. A 404 is a
// negative result, not a failure.
func (s *Service) FileExists(ctx context.Context, path, ref string) (bool, error) {
	_, resp, err := s.cl.Raw().RepositoryFiles.GetFileMetaData(s.cl.Project(), path, &gitlab.GetFileMetaDataOptions{
		Ref: gitlab.Ptr(ref),
	}, s.cl.Options(ctx)...)
	if err != nil {
		apiErr := client.APIErrorFrom(resp, err)
		if client.IsNotFound(apiErr) {
			return false, nil
		}
		return false, fmt.Errorf("probing %s at %s: %w", path, ref, apiErr)
	}
	return true, nil
}

// ReadFile returns the raw content of a file at ref.
func (s *Service) ReadFile(ctx context.Context, path, ref string) ([]byte, error) {
	content, resp, err := s.cl.Raw().RepositoryFiles.GetRawFile(s.cl.Project(), path, &gitlab.GetRawFileOptions{
		Ref: gitlab.Ptr(ref),
	}, s.cl.Options(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("reading %s at %s: %w", path, ref, client.APIErrorFrom(resp, err))
	}
	return content, nil
}

// ReadFileCached reads a file through the content cache keyed by its blob
// hash. Without a cache it reads directly.
func (s *Service) ReadFileCached(ctx context.Context, path, ref, blobSHA string) ([]byte, error) {
	if s.store == nil || blobSHA == "" {
		return s.ReadFile(ctx, path, ref)
	}
	return s.store.GetOrFetch(ctx, blobSHA, func(ctx context.Context) ([]byte, error) {
		return s.ReadFile(ctx, path, ref)
	})
}

// ListTreePage lists one page of the repository tree and derives the
// pagination cursor for it.
func (s *Service) ListTreePage(ctx context.Context, path, ref string, recursive bool, page, perPage int) ([]TreeEntry, cursor.Cursor, error) {
	nodes, resp, err := s.cl.Raw().Repositories.ListTree(s.cl.Project(), &gitlab.ListTreeOptions{
		ListOptions: gitlab.ListOptions{Page: page, PerPage: perPage},
		Path:        gitlab.Ptr(path),
		Ref:         gitlab.Ptr(ref),
		Recursive:   gitlab.Ptr(recursive),
	}, s.cl.Options(ctx)...)
	if err != nil {
		return nil, cursor.Cursor{}, fmt.Errorf("listing tree %s at %s: %w", path, ref, client.APIErrorFrom(resp, err))
	}

	entries := make([]TreeEntry, len(nodes))
	for i, n := range nodes {
		kind := KindDirectory
		if n.Type == "blob" {
			kind = KindFile
		}
		entries[i] = TreeEntry{ID: n.ID, Name: n.Name, Path: n.Path, Kind: kind}
	}
	return entries, cursor.FromResponse(resp), nil
}

// TraverseTree follows one pagination action of a cursor and returns the
// entries of the target page together with its cursor.
func (s *Service) TraverseTree(ctx context.Context, path, ref string, recursive bool, cur cursor.Cursor, action cursor.Action) ([]TreeEntry, cursor.Cursor, error) {
	page, ok := cur.PageFor(action)
	if !ok {
		return nil, cursor.Cursor{}, fmt.Errorf("cursor offers no %q action", action)
	}
	return s.ListTreePage(ctx, path, ref, recursive, page, cur.PerPage)
}

// ListAllFiles lists every file under path at ref, following "next" cursors
// at the maximal page size until exhausted. Directory entries are dropped.
func (s *Service) ListAllFiles(ctx context.Context, path, ref string, recursive bool) ([]TreeEntry, error) {
	var files []TreeEntry

	page := 1
	for {
		entries, cur, err := s.ListTreePage(ctx, path, ref, recursive, page, cursor.MaxPerPage)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Kind == KindFile {
				files = append(files, e)
			}
		}

		next, ok := cur.PageFor(cursor.Next)
		if !ok {
			break
		}
		page = next
	}

	return files, nil
}
