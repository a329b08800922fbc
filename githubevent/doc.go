/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubevent normalizes raw webhook payloads into the immutable
// event context the rest of the pipeline consumes.
//
// Parse is the single entry point: it decodes the payload for the declared
// event kind, validates that the sub-objects the kind requires are present,
// and flattens the result into a Context of plain fields. Kind-specific
// details (comment bodies, assignees, labels) stay behind accessor methods
// so callers never type-switch on the underlying event themselves.
package githubevent
