package model

// Webhook actions that trigger the review pipeline. Everything else
// (closed, merged, reopened, labeled, ...) is acknowledged and ignored.
const (
	ActionOpened      = "opened"
	ActionSynchronize = "synchronize"
)

// PullRequestEvent is the subset of the GitHub pull_request webhook payload
// the pipeline consumes. Constructed once per request and discarded after
// the pipeline completes or rejects it.
type PullRequestEvent struct {
	Action       string `json:"action"`
	PullRequest  *PRRef `json:"pull_request"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
}

// PRRef identifies the pull request within an event payload.
type PRRef struct {
	Number int `json:"number"`
}

// ShouldProcess reports whether the event carries a pull request and an
// action in the processed set.
func (e PullRequestEvent) ShouldProcess() bool {
	if e.PullRequest == nil {
		return false
	}
	return e.Action == ActionOpened || e.Action == ActionSynchronize
}

// Owner returns the repository owner login.
func (e PullRequestEvent) Owner() string {
	return e.Repository.Owner.Login
}

// Repo returns the repository name.
func (e PullRequestEvent) Repo() string {
	return e.Repository.Name
}
