// Package fileid derives stable index document IDs for converted text files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"path/filepath"
)

const prefix = "doc:"

// DocID returns the document ID of the text file at relPath inside a lot's text tree.
// The path is cleaned and slash-separated, so the ID does not depend on the working
// directory location or the host separator.
func DocID(lotID, relPath string) string {
	rel := path.Clean(filepath.ToSlash(relPath))
	hash := sha256.Sum256([]byte(lotID + "\x00" + rel))
	return prefix + hex.EncodeToString(hash[:])
}
