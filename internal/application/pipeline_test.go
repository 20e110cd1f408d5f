package application_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewhook/internal/application"
	"github.com/ericfisherdev/reviewhook/internal/domain/model"
	"github.com/ericfisherdev/reviewhook/internal/domain/port/driven"
)

// fakeIssuer implements driven.CredentialIssuer.
type fakeIssuer struct {
	token string
	err   error

	mu    sync.Mutex
	calls []int64
}

func (f *fakeIssuer) MintInstallationToken(_ context.Context, installationID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, installationID)
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

// inlinePost records one CreateReviewComment call.
type inlinePost struct {
	CommitID string
	Path     string
	Position int
	Body     string
}

// fakeGitHub implements driven.GitHubClient and driven.GitHubClientFactory.
type fakeGitHub struct {
	files        []model.ChangedFile
	listErr      error
	headSHA      string
	headErr      error
	inlineErrFor map[string]error // Path -> error for CreateReviewComment.
	summaryErr   error

	mu            sync.Mutex
	tokens        []string
	headCalls     int
	inlinePosts   []inlinePost
	summaryBodies []string
}

func (f *fakeGitHub) ClientFor(token string) driven.GitHubClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return f
}

func (f *fakeGitHub) ListChangedFiles(_ context.Context, _, _ string, _ int) ([]model.ChangedFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *fakeGitHub) FetchHeadSHA(_ context.Context, _, _ string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headCalls++
	if f.headErr != nil {
		return "", f.headErr
	}
	return f.headSHA, nil
}

func (f *fakeGitHub) CreateReviewComment(_ context.Context, _, _ string, _ int, commitID, path string, position int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.inlineErrFor[path]; ok {
		return err
	}
	f.inlinePosts = append(f.inlinePosts, inlinePost{CommitID: commitID, Path: path, Position: position, Body: body})
	return nil
}

func (f *fakeGitHub) CreateIssueComment(_ context.Context, _, _ string, _ int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return f.summaryErr
	}
	f.summaryBodies = append(f.summaryBodies, body)
	return nil
}

// fakeReviewer implements driven.Reviewer.
type fakeReviewer struct {
	findingsFor map[string][]model.Finding
	errFor      map[string]error

	mu      sync.Mutex
	reviews []string
}

func (f *fakeReviewer) ReviewPatch(_ context.Context, filename, _ string) ([]model.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append(f.reviews, filename)
	if err, ok := f.errFor[filename]; ok {
		return nil, err
	}
	return f.findingsFor[filename], nil
}

// testEvent returns the canonical opened-PR event used across these tests.
func testEvent() model.PullRequestEvent {
	var e model.PullRequestEvent
	e.Action = model.ActionOpened
	e.PullRequest = &model.PRRef{Number: 42}
	e.Installation.ID = 7
	e.Repository.Name = "widgets"
	e.Repository.Owner.Login = "acme"
	return e
}

func newPipeline(gh *fakeGitHub, reviewer *fakeReviewer, issuer *fakeIssuer) *application.ReviewPipeline {
	return application.NewReviewPipeline(issuer, gh, reviewer, application.PipelineOptions{})
}

func TestRun_EndToEnd(t *testing.T) {
	gh := &fakeGitHub{
		files: []model.ChangedFile{
			{Filename: "a.js", Status: model.FileStatusModified, Additions: 10, Deletions: 2, Patch: "@@ -1 +1 @@"},
			{Filename: "img.png", Status: model.FileStatusModified, Additions: 0, Deletions: 0},
		},
		headSHA: "abc123",
	}
	reviewer := &fakeReviewer{
		findingsFor: map[string][]model.Finding{
			"a.js": {{Line: 3, Message: "prefer const", Severity: model.SeveritySuggestion}},
		},
	}
	issuer := &fakeIssuer{token: "ghs_run"}

	result, err := newPipeline(gh, reviewer, issuer).Run(context.Background(), testEvent())

	require.NoError(t, err)

	// Token minted for the event's installation and handed to the factory.
	assert.Equal(t, []int64{7}, issuer.calls)
	assert.Equal(t, []string{"ghs_run"}, gh.tokens)

	// Review service called once, for a.js only.
	assert.Equal(t, []string{"a.js"}, reviewer.reviews)

	// Summary stats include the skipped image file.
	assert.Equal(t, model.SummaryStats{Additions: 10, Deletions: 2, FilesChanged: 2, NetChange: 8}, result.Stats)

	// One inline comment, anchored to the head commit.
	require.Len(t, gh.inlinePosts, 1)
	assert.Equal(t, inlinePost{CommitID: "abc123", Path: "a.js", Position: 3, Body: "[SUGGESTION] prefer const"}, gh.inlinePosts[0])

	// One summary comment: neutral tier, no large-PR warning.
	require.Len(t, gh.summaryBodies, 1)
	assert.Contains(t, gh.summaryBodies[0], "moderate change")
	assert.NotContains(t, gh.summaryBodies[0], "Large PR")
	assert.Contains(t, gh.summaryBodies[0], "| Files changed | 2 |")

	// Outcomes preserve file order: reviewed, then skipped.
	require.Len(t, result.Outcomes, 2)
	assert.True(t, result.Outcomes[0].Reviewed())
	assert.Equal(t, 1, result.Outcomes[0].CommentsPosted)
	assert.Equal(t, model.SkipReasonNoPatch, result.Outcomes[1].SkipReason)
}

func TestRun_AuthErrorPropagates(t *testing.T) {
	gh := &fakeGitHub{}
	issuer := &fakeIssuer{err: &model.AuthError{Op: "exchange token", Err: errors.New("rejected")}}

	result, err := newPipeline(gh, &fakeReviewer{}, issuer).Run(context.Background(), testEvent())

	assert.Nil(t, result)
	var authErr *model.AuthError
	require.ErrorAs(t, err, &authErr)

	// Abort before any side effect.
	assert.Empty(t, gh.tokens)
	assert.Empty(t, gh.summaryBodies)
}

func TestRun_DiffFetchErrorPropagates(t *testing.T) {
	gh := &fakeGitHub{listErr: errors.New("boom")}
	issuer := &fakeIssuer{token: "t"}

	result, err := newPipeline(gh, &fakeReviewer{}, issuer).Run(context.Background(), testEvent())

	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching diff")
	assert.Empty(t, gh.summaryBodies)
}

func TestRun_SkipRules(t *testing.T) {
	gh := &fakeGitHub{
		files: []model.ChangedFile{
			{Filename: "gone.go", Status: model.FileStatusRemoved, Deletions: 30, Patch: "@@"},
			{Filename: "big.bin", Status: model.FileStatusModified, Additions: 1},
			{Filename: "logo.png", Status: model.FileStatusModified, Additions: 1, Patch: "@@"},
			{Filename: "app.py", Status: model.FileStatusModified, Additions: 5, Deletions: 1, Patch: "@@"},
		},
		headSHA: "abc123",
	}
	reviewer := &fakeReviewer{}
	issuer := &fakeIssuer{token: "t"}

	result, err := newPipeline(gh, reviewer, issuer).Run(context.Background(), testEvent())

	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, reviewer.reviews)

	require.Len(t, result.Outcomes, 4)
	assert.Equal(t, model.SkipReasonRemoved, result.Outcomes[0].SkipReason)
	assert.Equal(t, model.SkipReasonNoPatch, result.Outcomes[1].SkipReason)
	assert.Equal(t, model.SkipReasonImageFile, result.Outcomes[2].SkipReason)
	assert.True(t, result.Outcomes[3].Reviewed())

	// Removed file contributes nothing to the stats.
	assert.Equal(t, model.SummaryStats{Additions: 7, Deletions: 1, FilesChanged: 3, NetChange: 6}, result.Stats)
}

func TestRun_ReviewFailureIsolatedPerFile(t *testing.T) {
	gh := &fakeGitHub{
		files: []model.ChangedFile{
			{Filename: "a.go", Status: model.FileStatusModified, Additions: 1, Patch: "@@"},
			{Filename: "b.go", Status: model.FileStatusModified, Additions: 1, Patch: "@@"},
		},
		headSHA: "abc123",
	}
	reviewer := &fakeReviewer{
		errFor: map[string]error{"a.go": errors.New("review service down")},
		findingsFor: map[string][]model.Finding{
			"b.go": {{Line: 1, Message: "ok", Severity: model.SeverityWarning}},
		},
	}
	issuer := &fakeIssuer{token: "t"}

	result, err := newPipeline(gh, reviewer, issuer).Run(context.Background(), testEvent())

	require.NoError(t, err)

	// Both files were attempted and the summary still went out.
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, reviewer.reviews)
	require.Len(t, gh.summaryBodies, 1)

	assert.Error(t, result.Outcomes[0].Err)
	assert.Equal(t, 1, result.Outcomes[1].CommentsPosted)
}

func TestRun_InlinePostFailureSwallowed(t *testing.T) {
	gh := &fakeGitHub{
		files: []model.ChangedFile{
			{Filename: "a.go", Status: model.FileStatusModified, Additions: 1, Patch: "@@"},
		},
		headSHA:      "abc123",
		inlineErrFor: map[string]error{"a.go": errors.New("422")},
	}
	reviewer := &fakeReviewer{
		findingsFor: map[string][]model.Finding{
			"a.go": {{Line: 1, Message: "x", Severity: model.SeverityError}},
		},
	}
	issuer := &fakeIssuer{token: "t"}

	result, err := newPipeline(gh, reviewer, issuer).Run(context.Background(), testEvent())

	require.NoError(t, err)
	assert.Equal(t, 0, result.Outcomes[0].CommentsPosted)
	require.Len(t, gh.summaryBodies, 1)
}

func TestRun_SummaryPostFailurePropagates(t *testing.T) {
	gh := &fakeGitHub{
		files:      []model.ChangedFile{{Filename: "a.go", Status: model.FileStatusModified, Additions: 1, Patch: "@@"}},
		headSHA:    "abc123",
		summaryErr: errors.New("502"),
	}
	issuer := &fakeIssuer{token: "t"}

	result, err := newPipeline(gh, &fakeReviewer{}, issuer).Run(context.Background(), testEvent())

	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "posting summary comment")
}

func TestRun_HeadSHAFetchedOncePerRun(t *testing.T) {
	gh := &fakeGitHub{
		files: []model.ChangedFile{
			{Filename: "a.go", Status: model.FileStatusModified, Additions: 1, Patch: "@@"},
			{Filename: "b.go", Status: model.FileStatusModified, Additions: 1, Patch: "@@"},
		},
		headSHA: "abc123",
	}
	reviewer := &fakeReviewer{
		findingsFor: map[string][]model.Finding{
			"a.go": {{Line: 1, Message: "m1", Severity: model.SeverityWarning}, {Line: 2, Message: "m2", Severity: model.SeverityWarning}},
			"b.go": {{Line: 5, Message: "m3", Severity: model.SeverityError}},
		},
	}
	issuer := &fakeIssuer{token: "t"}

	_, err := newPipeline(gh, reviewer, issuer).Run(context.Background(), testEvent())

	require.NoError(t, err)
	assert.Equal(t, 1, gh.headCalls)
	assert.Len(t, gh.inlinePosts, 3)
}

func TestRun_HeadSHANotFetchedWithoutReviewableFiles(t *testing.T) {
	gh := &fakeGitHub{
		files: []model.ChangedFile{
			{Filename: "gone.go", Status: model.FileStatusRemoved, Deletions: 3, Patch: "@@"},
		},
	}
	issuer := &fakeIssuer{token: "t"}

	_, err := newPipeline(gh, &fakeReviewer{}, issuer).Run(context.Background(), testEvent())

	require.NoError(t, err)
	assert.Equal(t, 0, gh.headCalls)
	require.Len(t, gh.summaryBodies, 1)
}

func TestRun_HeadSHAFailureSkipsReviewPassNotSummary(t *testing.T) {
	gh := &fakeGitHub{
		files: []model.ChangedFile{
			{Filename: "a.go", Status: model.FileStatusModified, Additions: 1, Patch: "@@"},
		},
		headErr: errors.New("pr fetch failed"),
	}
	reviewer := &fakeReviewer{}
	issuer := &fakeIssuer{token: "t"}

	result, err := newPipeline(gh, reviewer, issuer).Run(context.Background(), testEvent())

	require.NoError(t, err)
	assert.Empty(t, reviewer.reviews)
	assert.Error(t, result.Outcomes[0].Err)
	require.Len(t, gh.summaryBodies, 1)
}

func TestRun_FindingOrderPreservedPerFile(t *testing.T) {
	gh := &fakeGitHub{
		files: []model.ChangedFile{
			{Filename: "a.go", Status: model.FileStatusModified, Additions: 1, Patch: "@@"},
		},
		headSHA: "abc123",
	}
	reviewer := &fakeReviewer{
		findingsFor: map[string][]model.Finding{
			"a.go": {
				{Line: 9, Message: "first", Severity: model.SeverityError},
				{Line: 2, Message: "second", Severity: model.SeverityWarning},
				{Line: 14, Message: "third", Severity: model.SeveritySuggestion},
			},
		},
	}
	issuer := &fakeIssuer{token: "t"}

	_, err := newPipeline(gh, reviewer, issuer).Run(context.Background(), testEvent())

	require.NoError(t, err)
	require.Len(t, gh.inlinePosts, 3)

	var bodies []string
	for _, p := range gh.inlinePosts {
		bodies = append(bodies, p.Body)
	}
	assert.Equal(t, "[ERROR] first", bodies[0])
	assert.Equal(t, "[WARNING] second", bodies[1])
	assert.Equal(t, "[SUGGESTION] third", bodies[2])
}

func TestRun_LargePRWarningInSummary(t *testing.T) {
	gh := &fakeGitHub{
		files: []model.ChangedFile{
			{Filename: "gen.go", Status: model.FileStatusAdded, Additions: 500, Patch: "@@"},
		},
		headSHA: "abc123",
	}
	issuer := &fakeIssuer{token: "t"}

	_, err := newPipeline(gh, &fakeReviewer{}, issuer).Run(context.Background(), testEvent())

	require.NoError(t, err)
	require.Len(t, gh.summaryBodies, 1)
	body := gh.summaryBodies[0]
	assert.Contains(t, body, "grows the codebase")
	assert.True(t, strings.Contains(body, "Large PR"))
}
