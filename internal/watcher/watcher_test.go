package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitLot(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("no change reported for lot %s", want)
		}
	}
}

func TestWatcher_ReportsChangedLot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "100"), 0755); err != nil {
		t.Fatal(err)
	}
	changed := make(chan string, 16)
	w := NewWatcher(root, func(id string) { changed <- id }, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "100", "tz.pdf.txt"), []byte("текст"), 0644); err != nil {
		t.Fatal(err)
	}
	waitLot(t, changed, "100")
}

func TestWatcher_NewLotDirectory(t *testing.T) {
	root := t.TempDir()
	changed := make(chan string, 16)
	w := NewWatcher(root, func(id string) { changed <- id }, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.MkdirAll(filepath.Join(root, "200", "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	waitLot(t, changed, "200")

	// The new subdirectory is watched too.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(root, "200", "sub", "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	waitLot(t, changed, "200")
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "txt"), nil, WithLogger(nil))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestWatcher_ReplacedTimerDoesNothing(t *testing.T) {
	var calls []string
	w := NewWatcher(t.TempDir(), func(id string) { calls = append(calls, id) }, WithDebounce(time.Hour))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.schedule("100")
	old := w.debounceMap["100"]
	w.schedule("100")
	current := w.debounceMap["100"]
	if old == current {
		t.Fatal("schedule should replace the pending timer")
	}

	// A callback of the replaced timer that fires late must not touch the current one.
	w.fire("100", old)
	if len(calls) != 0 {
		t.Errorf("replaced timer called onLot: %v", calls)
	}
	if w.debounceMap["100"] != current {
		t.Fatal("replaced timer removed the pending entry")
	}

	w.fire("100", current)
	if len(calls) != 1 || calls[0] != "100" {
		t.Errorf("calls = %v, want [100]", calls)
	}
	if _, ok := w.debounceMap["100"]; ok {
		t.Error("fired timer should leave the pending set")
	}
}

func TestWatcher_StopDropsPendingCallback(t *testing.T) {
	var calls int
	w := NewWatcher(t.TempDir(), func(string) { calls++ }, WithDebounce(time.Hour))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.schedule("100")
	pending := w.debounceMap["100"]
	w.Stop()

	w.fire("100", pending)
	if calls != 0 {
		t.Errorf("onLot ran %d times after Stop", calls)
	}
}

func TestLotOf(t *testing.T) {
	root := filepath.FromSlash("/work/txt")
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"/work/txt/100/a.txt", "100", true},
		{"/work/txt/100", "100", true},
		{"/work/txt/100 Поставка/sub/b.txt", "100 Поставка", true},
		{"/work/txt", "", false},
		{"/work/zip/100", "", false},
		{"/work/txt/../zip", "", false},
	}
	for _, tt := range tests {
		got, ok := LotOf(root, filepath.FromSlash(tt.path))
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("LotOf(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}
