/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agentrunner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func mkfifo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompt.pipe")
	if err := unix.Mkfifo(path, 0o600); err != nil {
		t.Fatalf("creating fifo: %v", err)
	}
	return path
}

func TestOpenWriteEndAttachesToReader(t *testing.T) {
	t.Parallel()
	path := mkfifo(t)

	rd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("opening read end: %v", err)
	}
	defer unix.Close(rd)

	w, err := openWriteEnd(context.Background(), path)
	if err != nil {
		t.Fatalf("openWriteEnd() error = %v", err)
	}
	w.Close()
}

func TestOpenWriteEndHonorsCancellation(t *testing.T) {
	t.Parallel()
	path := mkfifo(t)

	// No reader ever attaches; cancellation must still release the open.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := openWriteEnd(ctx, path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("openWriteEnd() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("open released after %v, expected promptly on cancel", elapsed)
	}
}
