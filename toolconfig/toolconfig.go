/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package toolconfig

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// BroadToolPrefix namespaces tool names that request the general-purpose
// hosting integration server.
const BroadToolPrefix = "mcp__github__"

// Server describes how one integration service is launched.
type Server struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Config is the frozen capability configuration handed to the runner. It is
// built incrementally by Merge and serialized exactly once.
type Config struct {
	// Servers maps service name to its invocation descriptor. Keys are
	// unique; merges are last-writer-wins.
	Servers map[string]Server
	// Extra carries top-level override keys other than the server mapping,
	// passed through to the assistant untouched.
	Extra map[string]json.RawMessage
}

// MarshalJSON renders the configuration in the shape the assistant CLI
// expects: override keys at the top level plus the server mapping.
func (c Config) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+1)
	for k, v := range c.Extra {
		out[k] = v
	}
	out["mcpServers"] = c.Servers
	return json.Marshal(out)
}

// Prober answers whether the ambient credential can read CI results. It is
// an interface so the merge logic stays pure and testable apart from the
// network probe.
type Prober interface {
	CanReadCIResults(ctx context.Context, owner, repo string) error
}

// WorkflowRunProber probes by listing recent workflow runs, the cheapest
// call that exercises the actions:read scope.
type WorkflowRunProber struct {
	GH *github.Client
}

func (p *WorkflowRunProber) CanReadCIResults(ctx context.Context, owner, repo string) error {
	_, _, err := p.GH.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, &github.ListWorkflowRunsOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	return err
}

// MergeInput parameterizes one merge. All values arrive explicitly; the
// merger never reads ambient process state.
type MergeInput struct {
	Token         string
	Owner         string
	Repo          string
	WorkingBranch string
	// CommentID identifies the tracked status comment the comment server is
	// scoped to.
	CommentID int64
	// AllowedTools is the caller's requested tool list; names under
	// BroadToolPrefix request the broad integration server.
	AllowedTools []string
	IsPR         bool
	// UseCommitSigning gates the file-operations server, which routes
	// commits through the hosting API so they are signed server-side.
	UseCommitSigning bool
	// RequestCIRead asks for the CI-results server; it is granted only when
	// the probe confirms the credential actually has the scope.
	RequestCIRead bool
	// AdditionalConfig is an optional JSON document merged over the
	// defaults, override-wins at both levels.
	AdditionalConfig string
	// ServerDir is the directory holding the companion server binaries
	// shipped with the action.
	ServerDir string
}

// Merge assembles the capability configuration. Probe and override problems
// degrade with warnings; Merge itself never fails.
func Merge(ctx context.Context, in MergeInput, prober Prober) Config {
	log := clog.FromContext(ctx)

	baseEnv := map[string]string{
		"GITHUB_TOKEN": in.Token,
		"REPO_OWNER":   in.Owner,
		"REPO_NAME":    in.Repo,
	}

	cfg := Config{Servers: map[string]Server{}}

	// The status-update server is always present (unless the caller
	// explicitly overrides it), scoped to the single tracked comment.
	commentEnv := cloneEnv(baseEnv)
	commentEnv["CLAUDE_COMMENT_ID"] = strconv.FormatInt(in.CommentID, 10)
	cfg.Servers["github_comment"] = Server{
		Command: filepath.Join(in.ServerDir, "github-comment-server"),
		Env:     commentEnv,
	}

	if in.UseCommitSigning {
		fileOpsEnv := cloneEnv(baseEnv)
		fileOpsEnv["BRANCH_NAME"] = in.WorkingBranch
		cfg.Servers["github_file_ops"] = Server{
			Command: filepath.Join(in.ServerDir, "github-file-ops-server"),
			Env:     fileOpsEnv,
		}
	}

	if in.IsPR && in.RequestCIRead {
		if err := prober.CanReadCIResults(ctx, in.Owner, in.Repo); err != nil {
			// Permission absence is recoverable: proceed without the
			// descriptor rather than failing the whole run.
			log.With("error", err).Warn("CI results permission probe failed, continuing without CI server")
		} else {
			cfg.Servers["github_ci"] = Server{
				Command: filepath.Join(in.ServerDir, "github-actions-server"),
				Env:     cloneEnv(baseEnv),
			}
		}
	}

	for _, tool := range in.AllowedTools {
		if strings.HasPrefix(tool, BroadToolPrefix) {
			cfg.Servers["github"] = Server{
				Command: "docker",
				Args: []string{
					"run", "-i", "--rm",
					"-e", "GITHUB_PERSONAL_ACCESS_TOKEN",
					"ghcr.io/github/github-mcp-server:latest",
				},
				Env: map[string]string{"GITHUB_PERSONAL_ACCESS_TOKEN": in.Token},
			}
			break
		}
	}

	if in.AdditionalConfig != "" {
		cfg = mergeOverride(ctx, cfg, in.AdditionalConfig)
	}

	return cfg
}

// mergeOverride layers a caller-supplied JSON document over the base
// configuration. Top-level keys are overwritten wholesale; the server
// mapping is merged key-by-key with override entries winning. An unparseable
// or non-object document logs a warning and leaves the base untouched.
func mergeOverride(ctx context.Context, base Config, doc string) Config {
	log := clog.FromContext(ctx)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &top); err != nil {
		log.With("error", err).Warn("Additional config is not a JSON object, ignoring override")
		return base
	}
	if top == nil {
		log.Warn("Additional config is not a JSON object, ignoring override")
		return base
	}

	merged := Config{
		Servers: make(map[string]Server, len(base.Servers)),
		Extra:   make(map[string]json.RawMessage, len(base.Extra)+len(top)),
	}
	for k, v := range base.Servers {
		merged.Servers[k] = v
	}
	for k, v := range base.Extra {
		merged.Extra[k] = v
	}

	for key, raw := range top {
		if key != "mcpServers" {
			merged.Extra[key] = raw
			continue
		}

		var servers map[string]Server
		if err := json.Unmarshal(raw, &servers); err != nil {
			log.With("error", err).Warn("Additional config has malformed server mapping, ignoring override")
			return base
		}
		for name, server := range servers {
			merged.Servers[name] = server
		}
	}

	return merged
}

func cloneEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}
