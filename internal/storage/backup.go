package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/starford/tasklint/internal/apperr"
)

const backupStamp = "20060102150405"

// Backup copies path to "<name>.<YYYYMMDDHHMMSS>.bak" next to it. When that
// name is taken within the same second a counter is appended to the stamp.
// Every failure wraps apperr.ErrBackupFailed.
func (f *FS) Backup(path string) (string, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return "", fmt.Errorf("storage: backup %s: %w: %w", path, apperr.ErrBackupFailed, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("storage: backup %s: %w: %w", path, apperr.ErrBackupFailed, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("storage: backup %s: %w: %w", path, apperr.ErrBackupFailed, err)
	}

	stamp := f.now().UTC().Format(backupStamp)
	for i := 0; i < 100; i++ {
		name := abs + "." + stamp
		if i > 0 {
			name += "-" + strconv.Itoa(i)
		}
		name += BackupExt

		err := writeExclusive(name, data, info.Mode().Perm())
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("storage: backup %s: %w: %w", path, apperr.ErrBackupFailed, err)
		}
		rel, _ := filepath.Rel(f.root, name)
		return filepath.ToSlash(rel), nil
	}
	return "", fmt.Errorf("storage: backup %s: %w: %w", path, apperr.ErrBackupFailed, apperr.ErrAlreadyExists)
}

func writeExclusive(name string, data []byte, perm os.FileMode) error {
	out, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		_ = out.Close()
		_ = os.Remove(name)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(name)
		return err
	}
	return out.Close()
}
