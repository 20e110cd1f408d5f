// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/reviewhook/internal/domain/model"
	"github.com/ericfisherdev/reviewhook/internal/domain/port/driven"
)

// PipelineOptions are the policy knobs for one pipeline instance.
type PipelineOptions struct {
	Render      model.RenderOptions
	Concurrency int           // Bound on concurrent per-file reviews; minimum 1.
	CallTimeout time.Duration // Per external call; zero disables the bound.
}

// FileOutcome records what happened to a single changed file during a run.
// Skips and per-file review failures are data here, never pipeline errors.
type FileOutcome struct {
	Filename       string
	SkipReason     model.SkipReason
	Findings       []model.Finding
	CommentsPosted int
	Err            error // Review-service failure for this file; isolated, run continues.
}

// Reviewed reports whether the file was actually sent to the review service.
func (o FileOutcome) Reviewed() bool {
	return o.SkipReason == model.SkipReasonNone && o.Err == nil
}

// RunResult summarizes a completed pipeline run.
type RunResult struct {
	Stats    model.SummaryStats
	Outcomes []FileOutcome
}

// ReviewPipeline executes the full PR-processing pipeline for one webhook
// event: mint an installation token, fetch the diff, fan out per-file
// reviews with inline comment posting, then post the summary comment.
// Each run mints and discards its own credential; instances hold no
// per-run state and are safe for concurrent events.
type ReviewPipeline struct {
	issuer   driven.CredentialIssuer
	factory  driven.GitHubClientFactory
	reviewer driven.Reviewer
	opts     PipelineOptions
}

// NewReviewPipeline creates a pipeline with all required dependencies.
func NewReviewPipeline(
	issuer driven.CredentialIssuer,
	factory driven.GitHubClientFactory,
	reviewer driven.Reviewer,
	opts PipelineOptions,
) *ReviewPipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Render.LargeThreshold == 0 && opts.Render.HugeThreshold == 0 {
		opts.Render = model.DefaultRenderOptions()
	}
	return &ReviewPipeline{
		issuer:   issuer,
		factory:  factory,
		reviewer: reviewer,
		opts:     opts,
	}
}

// Run processes one pull request event end to end. Credential failures
// surface as *model.AuthError; diff-fetch and summary-post failures
// propagate as ordinary errors. Per-file review and inline-post failures
// are logged and isolated; they never abort the run, and the summary
// comment always reflects the complete file set.
func (p *ReviewPipeline) Run(ctx context.Context, event model.PullRequestEvent) (*RunResult, error) {
	owner, repo, number := event.Owner(), event.Repo(), event.PullRequest.Number
	start := time.Now()

	token, err := p.mintToken(ctx, event.Installation.ID)
	if err != nil {
		return nil, err
	}
	client := p.factory.ClientFor(token)

	files, err := p.listFiles(ctx, client, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetching diff: %w", err)
	}

	stats := model.Summarize(files)

	outcomes := p.reviewFiles(ctx, client, owner, repo, number, files)

	summary := model.Render(stats, p.opts.Render)
	if err := p.postSummary(ctx, client, owner, repo, number, summary); err != nil {
		return nil, fmt.Errorf("posting summary comment: %w", err)
	}

	slog.Info("pipeline run complete",
		"repo", owner+"/"+repo,
		"pr_number", number,
		"action", event.Action,
		"files", len(files),
		"net_change", stats.NetChange,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return &RunResult{Stats: stats, Outcomes: outcomes}, nil
}

// reviewFiles fans the changed files out over a bounded worker pool and
// joins before returning, so the summary post always runs after all
// per-file work. Outcome order matches file order.
func (p *ReviewPipeline) reviewFiles(ctx context.Context, client driven.GitHubClient, owner, repo string, number int, files []model.ChangedFile) []FileOutcome {
	outcomes := make([]FileOutcome, len(files))

	headSHA, headErr := p.fetchHeadSHA(ctx, client, owner, repo, number, files)
	if headErr != nil {
		// Inline comments cannot be anchored without a commit ID. The
		// summary is the primary deliverable, so the run continues with
		// the review pass marked failed per file.
		slog.Warn("head SHA unavailable, skipping review pass",
			"repo", owner+"/"+repo, "pr_number", number, "error", headErr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for idx, file := range files {
		g.Go(func() error {
			if reason := file.SkipReasonFor(); reason != model.SkipReasonNone {
				outcomes[idx] = FileOutcome{Filename: file.Filename, SkipReason: reason}
				return nil
			}
			if headErr != nil {
				outcomes[idx] = FileOutcome{Filename: file.Filename, Err: headErr}
				return nil
			}
			outcomes[idx] = p.reviewFile(gctx, client, owner, repo, number, headSHA, file)
			return nil
		})
	}

	// Tasks never return errors; the group is the join barrier.
	_ = g.Wait()

	return outcomes
}

// reviewFile reviews one file and posts its findings as inline comments in
// the order the service returned them. Every failure here is isolated:
// logged, recorded on the outcome, and swallowed.
func (p *ReviewPipeline) reviewFile(ctx context.Context, client driven.GitHubClient, owner, repo string, number int, headSHA string, file model.ChangedFile) FileOutcome {
	outcome := FileOutcome{Filename: file.Filename}

	callCtx, cancel := p.boundCall(ctx)
	findings, err := p.reviewer.ReviewPatch(callCtx, file.Filename, file.Patch)
	cancel()
	if err != nil {
		slog.Warn("file review failed",
			"repo", owner+"/"+repo, "pr_number", number, "file", file.Filename, "error", err)
		outcome.Err = err
		return outcome
	}
	outcome.Findings = findings

	for _, finding := range findings {
		callCtx, cancel := p.boundCall(ctx)
		err := client.CreateReviewComment(callCtx, owner, repo, number, headSHA, file.Filename, finding.Line, finding.CommentBody())
		cancel()
		if err != nil {
			slog.Warn("inline comment post failed",
				"repo", owner+"/"+repo, "pr_number", number,
				"file", file.Filename, "position", finding.Line, "error", err)
			continue
		}
		outcome.CommentsPosted++
	}

	return outcome
}

// fetchHeadSHA resolves the PR head commit once per run, and only when at
// least one file will actually be reviewed.
func (p *ReviewPipeline) fetchHeadSHA(ctx context.Context, client driven.GitHubClient, owner, repo string, number int, files []model.ChangedFile) (string, error) {
	anyReviewable := false
	for _, f := range files {
		if f.Reviewable() {
			anyReviewable = true
			break
		}
	}
	if !anyReviewable {
		return "", nil
	}

	callCtx, cancel := p.boundCall(ctx)
	defer cancel()
	return client.FetchHeadSHA(callCtx, owner, repo, number)
}

func (p *ReviewPipeline) mintToken(ctx context.Context, installationID int64) (string, error) {
	callCtx, cancel := p.boundCall(ctx)
	defer cancel()
	return p.issuer.MintInstallationToken(callCtx, installationID)
}

func (p *ReviewPipeline) listFiles(ctx context.Context, client driven.GitHubClient, owner, repo string, number int) ([]model.ChangedFile, error) {
	callCtx, cancel := p.boundCall(ctx)
	defer cancel()
	return client.ListChangedFiles(callCtx, owner, repo, number)
}

func (p *ReviewPipeline) postSummary(ctx context.Context, client driven.GitHubClient, owner, repo string, number int, body string) error {
	callCtx, cancel := p.boundCall(ctx)
	defer cancel()
	return client.CreateIssueComment(callCtx, owner, repo, number, body)
}

// boundCall applies the per-call timeout when one is configured.
func (p *ReviewPipeline) boundCall(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.opts.CallTimeout)
}
