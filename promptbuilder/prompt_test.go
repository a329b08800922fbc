/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder_test

import (
	"strings"
	"testing"

	"chainguard.dev/actionagent/promptbuilder"
)

func TestBindings(t *testing.T) {
	t.Parallel()

	t.Run("no bindings", func(t *testing.T) {
		p := promptbuilder.New("A plain prompt")
		if got := len(p.Bindings()); got != 0 {
			t.Errorf("binding count: got %d, want 0", got)
		}
	})

	t.Run("multiple bindings", func(t *testing.T) {
		p := promptbuilder.New("Repo: {{repository}}\nRequest: {{request}}\nBranch: {{branch}}")
		bindings := p.Bindings()
		for _, want := range []string{"repository", "request", "branch"} {
			if _, ok := bindings[want]; !ok {
				t.Errorf("binding %q: got absent, want present", want)
			}
		}
	})

	t.Run("repeated placeholder counted once", func(t *testing.T) {
		p := promptbuilder.New("{{x}} and {{x}}")
		if got := len(p.Bindings()); got != 1 {
			t.Errorf("binding count: got %d, want 1", got)
		}
	})
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("renders all bindings", func(t *testing.T) {
		p := promptbuilder.New("Work on {{repository}} branch {{branch}}").
			MustBind("repository", "acme/widgets").
			MustBind("branch", "claude/issue-1-x")
		got, err := p.Build()
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		want := "Work on acme/widgets branch claude/issue-1-x"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("repeated placeholder rendered everywhere", func(t *testing.T) {
		p := promptbuilder.New("{{x}}-{{x}}").MustBind("x", "a")
		got, err := p.Build()
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if got != "a-a" {
			t.Errorf("got %q, want a-a", got)
		}
	})

	t.Run("unbound binding fails", func(t *testing.T) {
		_, err := promptbuilder.New("{{a}} {{b}}").MustBind("a", "x").Build()
		if err == nil {
			t.Fatal("expected error for unbound binding")
		}
		if !strings.Contains(err.Error(), "b") {
			t.Errorf("error should name the missing binding, got %v", err)
		}
	})
}

func TestBindUnknownName(t *testing.T) {
	t.Parallel()
	if _, err := promptbuilder.New("{{a}}").Bind("typo", "x"); err == nil {
		t.Fatal("expected error binding undeclared name")
	}
}

func TestBindDoesNotMutateOriginal(t *testing.T) {
	t.Parallel()
	base := promptbuilder.New("{{a}}")
	bound := base.MustBind("a", "x")

	if _, err := base.Build(); err == nil {
		t.Error("original prompt should still be unbound")
	}
	if got, err := bound.Build(); err != nil || got != "x" {
		t.Errorf("bound prompt: got (%q, %v), want (\"x\", nil)", got, err)
	}
}
