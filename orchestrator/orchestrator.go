/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"chainguard.dev/actionagent/agentrunner"
	"chainguard.dev/actionagent/branchmanager"
	"chainguard.dev/actionagent/githubevent"
	"chainguard.dev/actionagent/statuscomment"
	"chainguard.dev/actionagent/toolconfig"
	"chainguard.dev/actionagent/trigger"
	"github.com/chainguard-dev/clog"
)

// Conclusion is the terminal verdict of one invocation.
type Conclusion string

const (
	ConclusionSuccess Conclusion = "success"
	ConclusionFailure Conclusion = "failure"
	ConclusionSkipped Conclusion = "skipped"
)

// Outcome is what the invocation reports upward.
type Outcome struct {
	Conclusion Conclusion
	// ExecutionFile is the artifact path, when one was produced.
	ExecutionFile string
	// ExitCode is what the process should exit with: 0 for success and
	// skipped, the assistant's own code (124 reserved for timeout) when it
	// ran and failed, 1 for failures before the assistant started.
	ExitCode int
}

// failure builds a failure outcome carrying the exit code the process
// should surface.
func failure(exitCode int) *Outcome {
	return &Outcome{Conclusion: ConclusionFailure, ExitCode: exitCode}
}

// BranchResolver prepares the working branch for the invocation.
type BranchResolver interface {
	Resolve(ctx context.Context, c *githubevent.Context, opts branchmanager.Options) (*branchmanager.State, error)
}

// Tracker maintains the tracking comment and serves conversation context.
type Tracker interface {
	Create(ctx context.Context, number int, user string) (int64, error)
	Finalize(ctx context.Context, commentID int64, oc statuscomment.Outcome) error
	FetchThread(ctx context.Context, number int) (*statuscomment.Thread, error)
}

// Runner executes the assistant once.
type Runner interface {
	Run(ctx context.Context, promptPath string) (*agentrunner.Result, error)
}

// RunnerFactory builds a Runner for one invocation's composed arguments.
type RunnerFactory func(args, env []string, timeout time.Duration) Runner

// Orchestrator composes the pipeline. Collaborators are interfaces so the
// sequencing logic tests against fakes.
type Orchestrator struct {
	branches  BranchResolver
	tracker   Tracker
	prober    toolconfig.Prober
	newRunner RunnerFactory
	workDir   string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkDir sets where per-invocation files (prompt, capability config)
// are written. Defaults to the system temp directory.
func WithWorkDir(dir string) Option {
	return func(o *Orchestrator) { o.workDir = dir }
}

// New constructs an Orchestrator.
func New(branches BranchResolver, tracker Tracker, prober toolconfig.Prober, newRunner RunnerFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		branches:  branches,
		tracker:   tracker,
		prober:    prober,
		newRunner: newRunner,
		workDir:   os.TempDir(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Invocation carries everything one run needs. Values arrive from the
// entrypoint's configuration; nothing here is read from ambient process
// state.
type Invocation struct {
	EventKind string
	Payload   []byte

	Rules  trigger.Rules
	Branch branchmanager.Options

	// Token is the hosting-API bearer credential handed to capability
	// servers.
	Token string

	AllowedTools    []string
	DisallowedTools []string
	MaxTurns        int
	// AppendSystemPrompt is extra system-prompt text passed to the
	// assistant verbatim.
	AppendSystemPrompt string
	FallbackModel      string

	UseCommitSigning bool
	RequestCIRead    bool
	AdditionalConfig string
	ServerDir        string

	// PromptTemplate overrides the built-in instruction template. It must
	// declare the same bindings.
	PromptTemplate string

	Timeout time.Duration
	// ExtraEnv is appended to the assistant's environment ("KEY=value").
	ExtraEnv []string
}

// Run executes the invocation. An unmatched trigger short-circuits to
// skipped with no side effects. The returned error is non-nil exactly when
// Conclusion is failure, so the entrypoint can exit non-zero.
func (o *Orchestrator) Run(ctx context.Context, in Invocation) (*Outcome, error) {
	log := clog.FromContext(ctx)

	c, err := githubevent.Parse(in.EventKind, in.Payload)
	if err != nil {
		return failure(1), fmt.Errorf("normalizing event: %w", err)
	}
	log = log.With("owner", c.Owner).With("repo", c.Repo).With("kind", string(c.Kind)).With("number", c.Number)

	decision := trigger.Evaluate(c, in.Rules)
	if !decision.Matched {
		log.Info("Trigger did not match, skipping")
		return &Outcome{Conclusion: ConclusionSkipped}, nil
	}
	log.With("user", decision.TriggeringUser).Info("Trigger matched")

	commentID, err := o.tracker.Create(ctx, c.Number, decision.TriggeringUser)
	if err != nil {
		return failure(1), fmt.Errorf("creating tracking comment: %w", err)
	}

	state, err := o.branches.Resolve(ctx, c, in.Branch)
	if err != nil {
		o.finalize(ctx, commentID, statuscomment.Outcome{})
		return failure(1), fmt.Errorf("resolving branch: %w", err)
	}
	log.With("working_branch", state.WorkingBranch).With("new", state.NewlyCreated).Info("Branch ready")

	cfg := toolconfig.Merge(ctx, toolconfig.MergeInput{
		Token:            in.Token,
		Owner:            c.Owner,
		Repo:             c.Repo,
		WorkingBranch:    state.WorkingBranch,
		CommentID:        commentID,
		AllowedTools:     in.AllowedTools,
		IsPR:             c.IsPR,
		UseCommitSigning: in.UseCommitSigning,
		RequestCIRead:    in.RequestCIRead,
		AdditionalConfig: in.AdditionalConfig,
		ServerDir:        in.ServerDir,
	}, o.prober)

	runDir, err := os.MkdirTemp(o.workDir, "agent-run-")
	if err != nil {
		o.finalize(ctx, commentID, statuscomment.Outcome{WorkingBranch: state.WorkingBranch})
		return failure(1), fmt.Errorf("creating run directory: %w", err)
	}

	configPath := filepath.Join(runDir, "capability-config.json")
	cfgData, err := json.Marshal(cfg)
	if err != nil {
		o.finalize(ctx, commentID, statuscomment.Outcome{WorkingBranch: state.WorkingBranch})
		return failure(1), fmt.Errorf("serializing capability config: %w", err)
	}
	if err := os.WriteFile(configPath, cfgData, 0o600); err != nil {
		o.finalize(ctx, commentID, statuscomment.Outcome{WorkingBranch: state.WorkingBranch})
		return failure(1), fmt.Errorf("writing capability config: %w", err)
	}

	promptPath := filepath.Join(runDir, "prompt.txt")
	promptText, err := o.buildPrompt(ctx, c, decision, state, in.PromptTemplate)
	if err != nil {
		o.finalize(ctx, commentID, statuscomment.Outcome{WorkingBranch: state.WorkingBranch})
		return failure(1), fmt.Errorf("building prompt: %w", err)
	}
	if err := os.WriteFile(promptPath, []byte(promptText), 0o600); err != nil {
		o.finalize(ctx, commentID, statuscomment.Outcome{WorkingBranch: state.WorkingBranch})
		return failure(1), fmt.Errorf("writing prompt: %w", err)
	}

	args := composeArgs(in, configPath)
	runner := o.newRunner(args, in.ExtraEnv, in.Timeout)

	result, err := runner.Run(ctx, promptPath)
	if err != nil {
		o.finalize(ctx, commentID, statuscomment.Outcome{WorkingBranch: state.WorkingBranch})
		return failure(1), fmt.Errorf("running assistant: %w", err)
	}

	o.finalize(ctx, commentID, statuscomment.Outcome{
		Succeeded:     result.Succeeded,
		WorkingBranch: state.WorkingBranch,
	})

	if !result.Succeeded {
		// The assistant's own code travels to the process boundary, so a
		// timeout surfaces as 124 rather than a generic failure.
		return &Outcome{
			Conclusion:    ConclusionFailure,
			ExecutionFile: result.ArtifactPath,
			ExitCode:      result.ExitCode,
		}, fmt.Errorf("assistant exited with code %d", result.ExitCode)
	}

	return &Outcome{
		Conclusion:    ConclusionSuccess,
		ExecutionFile: result.ArtifactPath,
	}, nil
}

// finalize updates the tracking comment on a terminal path. The comment is
// informative, never authoritative, so finalization troubles only warn.
func (o *Orchestrator) finalize(ctx context.Context, commentID int64, oc statuscomment.Outcome) {
	if err := o.tracker.Finalize(ctx, commentID, oc); err != nil {
		clog.FromContext(ctx).With("error", err).Warn("Finalizing tracking comment failed")
	}
}

// composeArgs assembles the assistant CLI flag list from the invocation.
func composeArgs(in Invocation, configPath string) []string {
	args := []string{"-p", "--verbose", "--output-format", "stream-json", "--mcp-config", configPath}
	if len(in.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(in.AllowedTools, ","))
	}
	if len(in.DisallowedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(in.DisallowedTools, ","))
	}
	if in.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(in.MaxTurns))
	}
	if in.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", in.AppendSystemPrompt)
	}
	if in.FallbackModel != "" {
		args = append(args, "--fallback-model", in.FallbackModel)
	}
	return args
}
