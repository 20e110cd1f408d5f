// Package github implements the GitHubClient, GitHubClientFactory, and
// CredentialIssuer ports using the go-github library.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/reviewhook/internal/domain/model"
	"github.com/ericfisherdev/reviewhook/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.GitHubClient        = (*Client)(nil)
	_ driven.GitHubClientFactory = (*ClientFactory)(nil)
)

// ClientFactory builds per-run GitHub clients bound to a freshly minted
// installation token. Each client carries the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with installation token auth)
type ClientFactory struct {
	httpClient *http.Client
	baseURL    *url.URL // Nil in production; set for httptest servers.
}

// NewClientFactory creates a factory that targets the public GitHub API.
func NewClientFactory() *ClientFactory {
	return &ClientFactory{}
}

// NewClientFactoryWithHTTPClient creates a factory with a custom http.Client
// and base URL. This constructor is intended for testing, allowing injection
// of an httptest server.
func NewClientFactoryWithHTTPClient(httpClient *http.Client, baseURL string) (*ClientFactory, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return &ClientFactory{httpClient: httpClient, baseURL: u}, nil
}

// ClientFor returns a GitHubClient authenticated with the given installation
// token. The client is owned by one pipeline run and discarded with it.
func (f *ClientFactory) ClientFor(token string) driven.GitHubClient {
	var client *gh.Client
	if f.httpClient != nil {
		client = gh.NewClient(f.httpClient).WithAuthToken(token)
	} else {
		cacheTransport := httpcache.NewMemoryCacheTransport()
		rateLimitClient := github_ratelimit.NewClient(cacheTransport)
		client = gh.NewClient(rateLimitClient).WithAuthToken(token)
	}
	if f.baseURL != nil {
		client.BaseURL = f.baseURL
	}
	return &Client{gh: client}
}

// Client implements the driven.GitHubClient port for one pipeline run.
type Client struct {
	gh *gh.Client
}

// ListChangedFiles retrieves the list of files changed in a pull request.
// It handles pagination automatically and maps go-github types to domain
// model types, preserving the order GitHub reports.
func (c *Client) ListChangedFiles(ctx context.Context, owner, repo string, number int) ([]model.ChangedFile, error) {
	opts := &gh.ListOptions{PerPage: 100}
	allFiles := []model.ChangedFile{}

	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing files for %s/%s#%d (page %d): %w", owner, repo, number, opts.Page, err)
		}

		for _, f := range files {
			allFiles = append(allFiles, mapChangedFile(f))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allFiles, nil
}

// FetchHeadSHA returns the pull request's current head commit SHA. The
// pipeline fetches this once per run and reuses it for every inline comment.
func (c *Client) FetchHeadSHA(ctx context.Context, owner, repo string, number int) (string, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return "", fmt.Errorf("fetching head SHA for %s/%s#%d: %w", owner, repo, number, err)
	}

	sha := pr.GetHead().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("pull request %s/%s#%d has no head SHA", owner, repo, number)
	}

	return sha, nil
}

// CreateReviewComment posts an inline review comment anchored to a position
// within the unified diff of the given commit. Position is a diff-hunk
// index, not an absolute file line number.
func (c *Client) CreateReviewComment(ctx context.Context, owner, repo string, number int, commitID, path string, position int, body string) error {
	comment := &gh.PullRequestComment{
		Body:     gh.Ptr(body),
		CommitID: gh.Ptr(commitID),
		Path:     gh.Ptr(path),
		Position: gh.Ptr(position),
	}

	_, _, err := c.gh.PullRequests.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		return fmt.Errorf("creating review comment on %s/%s#%d (%s:%d): %w", owner, repo, number, path, position, err)
	}

	return nil
}

// CreateIssueComment creates a top-level (non-diff) comment on a pull
// request via the Issues API.
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("creating issue comment on %s/%s#%d: %w", owner, repo, number, err)
	}

	return nil
}

// mapChangedFile converts a go-github CommitFile to the domain model.
func mapChangedFile(f *gh.CommitFile) model.ChangedFile {
	return model.ChangedFile{
		Filename:  f.GetFilename(),
		Status:    model.FileStatus(f.GetStatus()),
		Additions: f.GetAdditions(),
		Deletions: f.GetDeletions(),
		Patch:     f.GetPatch(),
	}
}
