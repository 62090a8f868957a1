package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xanzy/go-gitlab"

	"github.com/inkcms/gitbridge/internal/client"
)

// BranchExists reports whether a branch exists. A 404 is a negative result.
func (s *Service) BranchExists(ctx context.Context, name string) (bool, error) {
	_, resp, err := s.cl.Raw().Branches.GetBranch(s.cl.Project(), name, s.cl.Options(ctx)...)
	if err != nil {
		apiErr := client.APIErrorFrom(resp, err)
		if client.IsNotFound(apiErr) {
			return false, nil
		}
		return false, fmt.Errorf("fetching branch %s: %w", name, apiErr)
	}
	return true, nil
}

// DeleteBranch removes a branch.
func (s *Service) DeleteBranch(ctx context.Context, name string) error {
	resp, err := s.cl.Raw().Branches.DeleteBranch(s.cl.Project(), name, s.cl.Options(ctx)...)
	if err != nil {
		return fmt.Errorf("deleting branch %s: %w", name, client.APIErrorFrom(resp, err))
	}
	return nil
}

// FileMetadata is the last-commit metadata of a path.
type FileMetadata struct {
	AuthorName string
	AuthoredAt time.Time
}

// FileMetadata returns author and date of the last commit touching path at
// ref. Metadata is best-effort: any failure yields an empty value.
func (s *Service) FileMetadata(ctx context.Context, path, ref string) FileMetadata {
	commits, _, err := s.cl.Raw().Commits.ListCommits(s.cl.Project(), &gitlab.ListCommitsOptions{
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: 1},
		RefName:     gitlab.Ptr(ref),
		Path:        gitlab.Ptr(path),
	}, s.cl.Options(ctx)...)
	if err != nil || len(commits) == 0 {
		if err != nil {
			s.log.WithFields(logrus.Fields{"path": path, "ref": ref}).WithError(err).Debug("file metadata lookup failed")
		}
		return FileMetadata{}
	}

	meta := FileMetadata{AuthorName: commits[0].AuthorName}
	if commits[0].AuthoredDate != nil {
		meta.AuthoredAt = *commits[0].AuthoredDate
	}
	return meta
}

// User is the authenticated service identity.
type User struct {
	Username string
	Name     string
	Email    string
}

// CurrentUser fetches the identity behind the configured token.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	u, resp, err := s.cl.Raw().Users.CurrentUser(s.cl.Options(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", client.APIErrorFrom(resp, err))
	}
	return &User{Username: u.Username, Name: u.Name, Email: u.Email}, nil
}

// IsCollaborator reports whether the authenticated user can write to the
// repository (developer access or above, directly or via group).
func (s *Service) IsCollaborator(ctx context.Context) (bool, error) {
	project, resp, err := s.cl.Raw().Projects.GetProject(s.cl.Project(), nil, s.cl.Options(ctx)...)
	if err != nil {
		return false, fmt.Errorf("fetching project permissions: %w", client.APIErrorFrom(resp, err))
	}

	var level gitlab.AccessLevelValue
	if p := project.Permissions; p != nil {
		if p.ProjectAccess != nil && p.ProjectAccess.AccessLevel > level {
			level = p.ProjectAccess.AccessLevel
		}
		if p.GroupAccess != nil && p.GroupAccess.AccessLevel > level {
			level = p.GroupAccess.AccessLevel
		}
	}
	return level >= gitlab.DeveloperPermissions, nil
}
