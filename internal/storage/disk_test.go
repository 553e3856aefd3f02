package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()

	f1 := filepath.Join(dir, "f1.txt")
	if err := os.WriteFile(f1, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{f1}, 5},
		{"dir", []string{sub}, 3},
		{"file+dir", []string{f1, sub}, 8},
		{"with missing", []string{f1, filepath.Join(dir, "nonexistent"), sub}, 8},
		{"with empty path", []string{"", f1}, 5},
	}
	for _, tt := range tests {
		got, err := DiskUsageBytes(tt.paths...)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %d bytes, want %d", tt.name, got, tt.want)
		}
	}
}

func TestStageUsage(t *testing.T) {
	workdir := t.TempDir()
	lotTxt := filepath.Join(workdir, "txt", "123")
	if err := os.MkdirAll(lotTxt, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lotTxt, "a.pdf.txt"), []byte("1234"), 0644); err != nil {
		t.Fatal(err)
	}

	usage, err := StageUsage(workdir)
	if err != nil {
		t.Fatal(err)
	}
	if len(usage) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(usage))
	}
	got := map[string]int64{}
	for _, u := range usage {
		got[u.Name] = u.Bytes
	}
	if got["txt"] != 4 || got["zip"] != 0 || got["query"] != 0 {
		t.Errorf("usage = %v", got)
	}
}
