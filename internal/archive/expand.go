// Package archive expands nested zip and rar archives in place.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/nwaples/rardecode/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// ErrArchive is returned for corrupt or unsupported archives.
var ErrArchive = errors.New("archive error")

// Expander recursively unpacks .zip and .rar files.
type Expander struct {
	removeArchives bool
	logger         *zap.Logger
}

// Option configures an Expander.
type Option func(*Expander)

// WithRemoveArchives deletes each archive after it has been expanded.
func WithRemoveArchives(remove bool) Option {
	return func(e *Expander) {
		e.removeArchives = remove
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Expander) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExpander returns an Expander that keeps archives unless WithRemoveArchives is given.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsArchive reports whether path has a .zip or .rar extension (case-insensitive).
func IsArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".rar":
		return true
	default:
		return false
	}
}

// Expand expands root, which may be an archive file or a directory. Each archive is unpacked into a
// sibling directory named by stripping its extension, and the result is expanded again until no
// archives are left. Subdirectories are handled before a directory's own archives.
// Returns the folders created for archives in root and its subdirectories; folders of archives
// nested inside other archives are not listed.
func (e *Expander) Expand(ctx context.Context, root string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	var created []string
	switch {
	case !info.IsDir() && IsArchive(root):
		dir, err := e.expandOne(ctx, root)
		if err != nil {
			return nil, err
		}
		created = append(created, dir)
		// Expanded content may itself contain archives.
		if _, err := e.Expand(ctx, dir); err != nil {
			return nil, err
		}
	case info.IsDir():
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", root, err)
		}
		var archives []string
		for _, entry := range entries {
			p := filepath.Join(root, entry.Name())
			if entry.IsDir() {
				sub, err := e.Expand(ctx, p)
				if err != nil {
					return nil, err
				}
				created = append(created, sub...)
			} else if IsArchive(p) {
				archives = append(archives, p)
			}
		}
		for _, p := range archives {
			sub, err := e.Expand(ctx, p)
			if err != nil {
				return nil, err
			}
			created = append(created, sub...)
		}
	}

	if info.IsDir() {
		removeEmptyDirs(root)
	}
	return created, nil
}

func (e *Expander) expandOne(ctx context.Context, path string) (string, error) {
	dest := strings.TrimSuffix(path, filepath.Ext(path))
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrArchive, dest, err)
	}

	var err error
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		err = e.unzip(ctx, path, dest)
	} else {
		err = e.unrar(ctx, path, dest)
	}
	if err != nil {
		return "", err
	}
	e.logger.Debug("expanded archive", zap.String("archive", path), zap.String("dest", dest))

	if e.removeArchives {
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("remove archive %s: %w", path, err)
		}
	}
	return dest, nil
}

func (e *Expander) unzip(ctx context.Context, path, dest string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("%w: open zip %s: %v", ErrArchive, path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := f.Name
		if f.NonUTF8 {
			// Best effort: a failed repair keeps the stored name.
			if repaired, ok := RepairName(name); ok {
				name = repaired
			}
		}
		target, err := safeJoin(dest, name)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrArchive, path, err)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: open entry %s: %v", ErrArchive, f.Name, err)
		}
		err = writeFile(target, rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("%w: extract entry %s: %v", ErrArchive, f.Name, err)
		}
	}
	return nil
}

func (e *Expander) unrar(ctx context.Context, path, dest string) error {
	rr, err := rardecode.OpenReader(path)
	if err != nil {
		return fmt.Errorf("%w: open rar %s: %v", ErrArchive, path, err)
	}
	defer rr.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read rar %s: %v", ErrArchive, path, err)
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrArchive, path, err)
		}
		if hdr.IsDir {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
			continue
		}
		if err := writeFile(target, rr); err != nil {
			return fmt.Errorf("%w: extract entry %s: %v", ErrArchive, hdr.Name, err)
		}
	}
}

// RepairName decodes a zip entry name stored in the DOS Cyrillic codepage (CP866). Legacy zip tools
// write such names without the UTF-8 flag, so a reader assuming CP437 shows mojibake.
// ok is false when the name is already valid UTF-8 or cannot be decoded.
func RepairName(name string) (string, bool) {
	if utf8.ValidString(name) {
		return name, false
	}
	decoded, err := charmap.CodePage866.NewDecoder().String(name)
	if err != nil {
		return name, false
	}
	return decoded, true
}

func safeJoin(dest, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes destination", name)
	}
	return target, nil
}

func writeFile(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// removeEmptyDirs deletes empty directories below root, deepest first. root itself is kept.
func removeEmptyDirs(root string) {
	var dirs []string
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() && p != root {
			dirs = append(dirs, p)
		}
		return nil
	})
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err == nil && len(entries) == 0 {
			_ = os.Remove(d)
		}
	}
}
