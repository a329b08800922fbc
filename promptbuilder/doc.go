/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package promptbuilder assembles the instruction prompt streamed to the
// assistant. Templates declare {{name}} bindings that must all be bound
// before the prompt can be rendered.
package promptbuilder
