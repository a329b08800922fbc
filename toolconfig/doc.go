/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package toolconfig assembles the set of auxiliary service integrations the
// assistant may invoke during a run, and reconciles built-in defaults with
// caller-supplied overrides.
//
// Merge is deliberately infallible: a malformed override or a failed
// capability probe logs a warning and falls back to the defaults, so a bad
// configuration degrades the run instead of aborting it.
package toolconfig
