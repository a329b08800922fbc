/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package agentrunner executes the assistant CLI as a subprocess.
//
// The prompt is streamed into the process through a named pipe rather than a
// regular file: the pipe provides backpressure, so the writer can start
// before the assistant attaches its reader, and neither side buffers the
// whole prompt. Stdout is captured line by line; lines that parse as JSON
// are pretty-printed to the run log and collected into the execution
// artifact.
//
// A wall-clock timeout bounds every run. On expiry the process group gets
// SIGTERM, a five second grace period, then SIGKILL, and the run reports the
// sentinel exit code 124.
package agentrunner
