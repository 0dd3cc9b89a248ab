package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

type fsStore struct {
	dir string
}

var _ Store = (*fsStore)(nil)

// NewFS returns a Store backed by a directory on the local filesystem. The
// directory is created if it does not exist. Lock claims map to exclusive
// file creation (O_CREATE|O_EXCL), which is atomic on POSIX filesystems and
// on Windows.
func NewFS(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create cache dir %q: %w", dir, err)
	}
	return &fsStore{dir: dir}, nil
}

func (s *fsStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *fsStore) Entries(_ context.Context) ([]string, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		names = append(names, de.Name())
	}
	return names, nil
}

// Write persists data via a temp file and rename so readers never observe a
// half-written snapshot.
func (s *fsStore) Write(_ context.Context, name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(name))
}

func (s *fsStore) Read(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(s.path(name))
}

func (s *fsStore) AcquireLock(_ context.Context, cache string, info LockInfo) (bool, error) {
	f, err := os.OpenFile(s.path(LockName(cache)), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	data, err := msgpack.Marshal(info)
	if err == nil {
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(s.path(LockName(cache)))
		return false, err
	}
	return true, nil
}

func (s *fsStore) ReadLock(_ context.Context, cache string) (bool, LockInfo, error) {
	data, err := os.ReadFile(s.path(LockName(cache)))
	if errors.Is(err, fs.ErrNotExist) {
		return false, LockInfo{}, nil
	}
	if err != nil {
		return false, LockInfo{}, err
	}
	var info LockInfo
	if err := msgpack.Unmarshal(data, &info); err != nil {
		// A lock file we cannot parse still means a lock is held.
		return true, LockInfo{}, nil
	}
	return true, info, nil
}

func (s *fsStore) ReleaseLock(_ context.Context, cache string) error {
	err := os.Remove(s.path(LockName(cache)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *fsStore) Close() error {
	return nil
}
