package models

import (
	"path/filepath"
	"strings"
)

// Working-directory subdirectories, one per stage.
const (
	ArchiveSubdir  = "zip"
	ExpandedSubdir = "unzipped"
	TextSubdir     = "txt"
	QuerySubdir    = "query"
)

// Lot is a single procurement listing with its own attachment set.
type Lot struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// NewLot returns a lot for url with its ID derived from the last path segment.
func NewLot(url string) *Lot {
	return &Lot{ID: LotID(url), URL: url}
}

// LotID returns the last path segment of a lot URL. A trailing slash is ignored.
func LotID(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// StageDirs holds the archive, expanded and text directories of a lot.
type StageDirs struct {
	Archive  string
	Expanded string
	Text     string
}

// All returns the three directories in stage order.
func (d StageDirs) All() []string {
	return []string{d.Archive, d.Expanded, d.Text}
}

// Dirs returns the lot's stage directories under root, named by suffix.
func Dirs(root, suffix string) StageDirs {
	return StageDirs{
		Archive:  filepath.Join(root, ArchiveSubdir, suffix),
		Expanded: filepath.Join(root, ExpandedSubdir, suffix),
		Text:     filepath.Join(root, TextSubdir, suffix),
	}
}

// Dirs returns the lot's working directories under workdir.
func (l *Lot) Dirs(workdir string) StageDirs {
	return Dirs(workdir, l.ID)
}
