// Package client constructs the GitLab API client shared by the adapter:
// base URL and token wiring, bounded retries for transient failures, and the
// per-request options every call is issued with.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xanzy/go-gitlab"
)

// ServiceName identifies the hosting service on surfaced errors.
const ServiceName = "GitLab"

const (
	retryMax     = 3
	retryWaitMin = 500 * time.Millisecond
	retryWaitMax = 5 * time.Second
)

// Client wraps the GitLab client with the adapter's repository identity.
// Configuration is read-only after construction.
type Client struct {
	gl      *gitlab.Client
	token   string
	project string
	log     *logrus.Logger
}

// Option configures the client.
type Option func(*Client) error

// WithBaseURL points the client at a custom API root (for testing).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		gl, err := newGitLabClient(c.token, baseURL+"/api/v4")
		if err != nil {
			return err
		}
		c.gl = gl
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) error {
		c.log = log
		return nil
	}
}

func newGitLabClient(token, apiRoot string) (*gitlab.Client, error) {
	return gitlab.NewClient(token,
		gitlab.WithBaseURL(apiRoot),
		gitlab.WithCustomRetryMax(retryMax),
		gitlab.WithCustomRetryWaitMinMax(retryWaitMin, retryWaitMax),
	)
}

// New creates a client for one repository. The project identifier is the
// "owner/name" form; the underlying library escapes it per request.
func New(apiRoot, token, project string, opts ...Option) (*Client, error) {
	gl, err := newGitLabClient(token, apiRoot)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	c := &Client{
		gl:      gl,
		token:   token,
		project: project,
		log:     logrus.StandardLogger(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Raw exposes the underlying GitLab client.
func (c *Client) Raw() *gitlab.Client {
	return c.gl
}

// Project returns the configured repository identifier.
func (c *Client) Project() string {
	return c.project
}

// Logger returns the configured logger.
func (c *Client) Logger() *logrus.Logger {
	return c.log
}

// Options returns the request options applied to every call: context
// propagation plus a no-cache directive, so reads always see the latest
// repository state. Extra options appended last win, letting a caller
// override the cache policy.
func (c *Client) Options(ctx context.Context, extra ...gitlab.RequestOptionFunc) []gitlab.RequestOptionFunc {
	opts := []gitlab.RequestOptionFunc{
		gitlab.WithContext(ctx),
		gitlab.WithHeader("Cache-Control", "no-cache"),
	}
	return append(opts, extra...)
}

// WithCachePolicy overrides the default no-cache directive for one request.
func WithCachePolicy(policy string) gitlab.RequestOptionFunc {
	return gitlab.WithHeader("Cache-Control", policy)
}
