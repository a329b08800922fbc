/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package trigger decides whether an event authorizes an assistant run.
//
// Evaluation is pure: the normalized event context and the configured rules
// go in, a Decision comes out, and nothing else is consulted. A direct
// prompt short-circuits everything; otherwise the event kind selects which
// rule (phrase, assignee, label) can match.
package trigger
