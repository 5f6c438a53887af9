package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// ErrLocked is returned when the advisory scan lock is already held.
var ErrLocked = errors.New("ledger: scan lock already held")

// Lock acquires the advisory scan lock by creating the lock file
// exclusively. The returned release function removes it. The lock only
// guards concurrent scan runs; a stale file after a crash must be removed
// by the operator.
func Lock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "ledger: mkdir for lock")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: create lock %s", path)
	}

	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	return func() { os.Remove(path) }, nil
}
