package storage

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/lotdocs/internal/models"
)

// DirUsage is the size of one working-directory subtree.
type DirUsage struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// StageUsage returns the size of each stage directory (zip, unzipped, txt) and the query
// aggregate under workdir. Missing directories report 0.
func StageUsage(workdir string) ([]DirUsage, error) {
	names := []string{models.ArchiveSubdir, models.ExpandedSubdir, models.TextSubdir, models.QuerySubdir}
	usage := make([]DirUsage, 0, len(names))
	for _, name := range names {
		p := filepath.Join(workdir, name)
		n, err := DiskUsageBytes(p)
		if err != nil {
			return nil, err
		}
		usage = append(usage, DirUsage{Name: name, Path: p, Bytes: n})
	}
	return usage, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed); symlinks are not followed.
// Missing paths are skipped (contribute 0); errors during walk are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Lstat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				fi, err := d.Info()
				if err != nil {
					return err
				}
				total += fi.Size()
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
