package driven

import (
	"context"

	"github.com/ericfisherdev/reviewhook/internal/domain/model"
)

// GitHubClient defines the driven port for interacting with the GitHub API
// on behalf of one pipeline run. Read methods fetch the diff; write methods
// post review output back to the pull request.
type GitHubClient interface {
	// Read methods

	// ListChangedFiles returns the ordered list of files changed in the
	// pull request, including the unified-diff patch where GitHub provides
	// one.
	ListChangedFiles(ctx context.Context, owner, repo string, number int) ([]model.ChangedFile, error)
	// FetchHeadSHA returns the pull request's current head commit SHA,
	// used to anchor inline review comments.
	FetchHeadSHA(ctx context.Context, owner, repo string, number int) (string, error)

	// Write methods

	// CreateReviewComment posts an inline review comment anchored to a
	// diff position on the given commit.
	CreateReviewComment(ctx context.Context, owner, repo string, number int, commitID, path string, position int, body string) error
	// CreateIssueComment adds a PR-level comment (via the Issues API).
	CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error
}

// GitHubClientFactory builds a GitHubClient bound to a short-lived
// installation token. Each pipeline run mints its own token and constructs
// its own client; nothing is shared across runs.
type GitHubClientFactory interface {
	ClientFor(token string) GitHubClient
}
