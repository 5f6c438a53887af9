// Package ledger owns the flat-file state of the pipeline: the update, email,
// and sender CSVs, the scan lock, and the sqlite analytics mirror. All CSV
// writes go through a temp-file-and-rename so readers never observe a
// half-written ledger.
package ledger

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// WriteAtomic writes data to path via a temp file in the same directory and
// an atomic rename. Parent directories are created as needed.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "ledger: mkdir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "ledger: create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrapf(err, "ledger: write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "ledger: close %s", tmpName)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "ledger: rename into %s", path)
	}
	return nil
}
