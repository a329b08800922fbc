/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main is the action entrypoint: it ingests the environment GitHub
// Actions provides, wires the live collaborators, and runs one invocation.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"chainguard.dev/actionagent/agentrunner"
	"chainguard.dev/actionagent/branchmanager"
	"chainguard.dev/actionagent/githubauth"
	"chainguard.dev/actionagent/orchestrator"
	"chainguard.dev/actionagent/statuscomment"
	"chainguard.dev/actionagent/toolconfig"
	"chainguard.dev/actionagent/trigger"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"github.com/sethvargo/go-envconfig"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

type config struct {
	// Actions-provided environment.
	EventName  string `env:"GITHUB_EVENT_NAME,required"`
	EventPath  string `env:"GITHUB_EVENT_PATH,required"`
	Repository string `env:"GITHUB_REPOSITORY,required"`
	Workspace  string `env:"GITHUB_WORKSPACE,required"`
	OutputPath string `env:"GITHUB_OUTPUT"`

	// Trigger rules.
	TriggerPhrase   string `env:"TRIGGER_PHRASE,default=@claude"`
	AssigneeTrigger string `env:"ASSIGNEE_TRIGGER"`
	LabelTrigger    string `env:"LABEL_TRIGGER"`
	DirectPrompt    string `env:"DIRECT_PROMPT"`

	// Branch strategy.
	BaseBranch   string `env:"BASE_BRANCH"`
	BranchPrefix string `env:"BRANCH_PREFIX,default=claude/"`

	// Credentials: a pre-issued token, or App installation credentials.
	GitHubToken    string `env:"GITHUB_TOKEN"`
	AppID          int64  `env:"APP_ID"`
	InstallationID int64  `env:"APP_INSTALLATION_ID"`
	AppPrivateKey  string `env:"APP_PRIVATE_KEY"`

	// Assistant invocation.
	AssistantBin       string   `env:"ASSISTANT_BIN,default=claude"`
	TimeoutMinutes     int      `env:"TIMEOUT_MINUTES,default=30"`
	AllowedTools       []string `env:"ALLOWED_TOOLS"`
	DisallowedTools    []string `env:"DISALLOWED_TOOLS"`
	MaxTurns           int      `env:"MAX_TURNS"`
	AppendSystemPrompt string   `env:"APPEND_SYSTEM_PROMPT"`
	FallbackModel      string   `env:"FALLBACK_MODEL"`
	UseCommitSigning   bool     `env:"USE_COMMIT_SIGNING,default=false"`
	RequestCIRead      bool     `env:"REQUEST_CI_READ,default=false"`
	AdditionalConfig   string   `env:"ADDITIONAL_MCP_CONFIG"`
	ServerDir          string   `env:"MCP_SERVER_DIR,default=/opt/actionagent/servers"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	owner, repo, ok := strings.Cut(cfg.Repository, "/")
	if !ok {
		clog.FatalContextf(ctx, "GITHUB_REPOSITORY %q is not owner/name", cfg.Repository)
	}

	payload, err := os.ReadFile(cfg.EventPath)
	if err != nil {
		clog.FatalContextf(ctx, "reading event payload: %v", err)
	}

	ts, err := githubauth.NewTokenSource(ctx, githubauth.Options{
		Token:          cfg.GitHubToken,
		AppID:          cfg.AppID,
		InstallationID: cfg.InstallationID,
		PrivateKey:     []byte(cfg.AppPrivateKey),
	})
	if err != nil {
		clog.FatalContextf(ctx, "acquiring credentials: %v", err)
	}
	token, err := ts.Token()
	if err != nil {
		clog.FatalContextf(ctx, "acquiring credentials: %v", err)
	}

	gh := github.NewClient(oauth2.NewClient(ctx, ts))
	gql := githubv4.NewClient(gh.Client())

	o := orchestrator.New(
		branchmanager.New(gh, cfg.Workspace, ts),
		statuscomment.New(gh, gql, owner, repo),
		&toolconfig.WorkflowRunProber{GH: gh},
		func(args, env []string, timeout time.Duration) orchestrator.Runner {
			return agentrunner.New(cfg.AssistantBin,
				agentrunner.WithArgs(args...),
				agentrunner.WithEnv(env...),
				agentrunner.WithTimeout(timeout),
				agentrunner.WithArtifactPath(filepath.Join(os.TempDir(), "assistant-execution.json")),
			)
		},
	)

	outcome, runErr := o.Run(ctx, orchestrator.Invocation{
		EventKind: cfg.EventName,
		Payload:   payload,
		Rules: trigger.Rules{
			Phrase:          cfg.TriggerPhrase,
			AssigneeTrigger: cfg.AssigneeTrigger,
			LabelTrigger:    cfg.LabelTrigger,
			DirectPrompt:    cfg.DirectPrompt,
		},
		Branch: branchmanager.Options{
			BaseBranchOverride: cfg.BaseBranch,
			Prefix:             cfg.BranchPrefix,
		},
		Token:              token.AccessToken,
		AllowedTools:       cfg.AllowedTools,
		DisallowedTools:    cfg.DisallowedTools,
		MaxTurns:           cfg.MaxTurns,
		AppendSystemPrompt: cfg.AppendSystemPrompt,
		FallbackModel:      cfg.FallbackModel,
		UseCommitSigning:   cfg.UseCommitSigning,
		RequestCIRead:      cfg.RequestCIRead,
		AdditionalConfig:   cfg.AdditionalConfig,
		ServerDir:          cfg.ServerDir,
		Timeout:            time.Duration(cfg.TimeoutMinutes) * time.Minute,
		ExtraEnv:           []string{"GITHUB_TOKEN=" + token.AccessToken},
	})

	if cfg.OutputPath != "" {
		if err := orchestrator.WriteActionsOutputs(cfg.OutputPath, outcome); err != nil {
			clog.WarnContextf(ctx, "writing outputs: %v", err)
		}
	}

	if runErr != nil {
		clog.ErrorContextf(ctx, "run failed: %v", runErr)
		code := outcome.ExitCode
		if code == 0 {
			code = 1
		}
		os.Exit(code)
	}
	clog.InfoContextf(ctx, "Run finished with conclusion %s", outcome.Conclusion)
}
