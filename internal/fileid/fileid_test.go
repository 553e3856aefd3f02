package fileid

import (
	"strings"
	"testing"
)

func TestDocID(t *testing.T) {
	id1 := DocID("42", "docs/tz.pdf.txt")
	id2 := DocID("42", "docs/tz.pdf.txt")
	if id1 != id2 {
		t.Errorf("same input should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if len(id1) != len(prefix)+64 {
		t.Errorf("ID length = %d", len(id1))
	}
}

func TestDocID_differentInputs(t *testing.T) {
	base := DocID("42", "a.txt")
	if base == DocID("42", "b.txt") {
		t.Error("different paths should give different IDs")
	}
	if base == DocID("43", "a.txt") {
		t.Error("different lots should give different IDs")
	}
	// The separator keeps ("4", "2/a.txt") apart from ("42", "/a.txt") style collisions.
	if DocID("4", "2a.txt") == DocID("42", "a.txt") {
		t.Error("lot and path must not run together")
	}
}

func TestDocID_normalized(t *testing.T) {
	id1 := DocID("42", "dir/a.txt")
	if id2 := DocID("42", "dir/./a.txt"); id1 != id2 {
		t.Errorf("paths with . should normalize: %q vs %q", id1, id2)
	}
	if id3 := DocID("42", "dir/sub/../a.txt"); id1 != id3 {
		t.Errorf("paths with .. should normalize: %q vs %q", id1, id3)
	}
}
