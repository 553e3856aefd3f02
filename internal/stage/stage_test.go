package stage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func populate(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "old.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDone(t *testing.T) {
	root := t.TempDir()
	if Done(filepath.Join(root, "missing")) {
		t.Error("missing dir should not be done")
	}
	empty := filepath.Join(root, "empty")
	if err := os.Mkdir(empty, 0755); err != nil {
		t.Fatal(err)
	}
	if Done(empty) {
		t.Error("empty dir should not be done")
	}
	populate(t, filepath.Join(root, "full"))
	if !Done(filepath.Join(root, "full")) {
		t.Error("populated dir should be done")
	}
}

func TestCache_Run(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out")
	populate(t, dir)

	calls := 0
	fn := func(context.Context) error { calls++; return nil }

	ran, err := NewCache(Force{}, nil).Run(ctx, Convert, "lot", dir, fn)
	if err != nil || ran || calls != 0 {
		t.Fatalf("populated stage should be skipped: ran=%v calls=%d err=%v", ran, calls, err)
	}

	ran, err = NewCache(Force{}, nil).Run(ctx, Convert, "lot", filepath.Join(t.TempDir(), "fresh"), fn)
	if err != nil || !ran || calls != 1 {
		t.Fatalf("fresh stage should run: ran=%v calls=%d err=%v", ran, calls, err)
	}
}

func TestCache_Run_forcedClearsOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	populate(t, dir)
	ran, err := NewCache(Force{Expand: true}, nil).Run(context.Background(), Expand, "lot", dir, func(context.Context) error {
		if _, err := os.Stat(filepath.Join(dir, "old.txt")); !os.IsNotExist(err) {
			t.Errorf("forced expand should clear output first, stat err = %v", err)
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("ran=%v err=%v", ran, err)
	}
}

func TestCache_Run_forcedDownloadKeepsOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	populate(t, dir)
	_, err := NewCache(Force{Download: true}, nil).Run(context.Background(), Download, "lot", dir, func(context.Context) error {
		if _, err := os.Stat(filepath.Join(dir, "old.txt")); err != nil {
			t.Errorf("forced download should keep existing files: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCache_Run_error(t *testing.T) {
	boom := errors.New("boom")
	ran, err := NewCache(Force{}, nil).Run(context.Background(), Download, "lot", t.TempDir(), func(context.Context) error { return boom })
	if !ran || !errors.Is(err, boom) {
		t.Errorf("ran=%v err=%v", ran, err)
	}
}

func TestCache_Run_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCache(Force{}, nil).Run(ctx, Download, "lot", t.TempDir(), func(context.Context) error {
		t.Error("fn must not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
