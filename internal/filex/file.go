// Package filex holds filesystem helpers for local state: the SQLite user
// store and on-disk model artifacts.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory that will hold path, so a SQLite
// database can be opened at a nested location on first start. Paths without
// a directory component are left alone.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// IsSQLiteFile reports whether dsn names an on-disk SQLite file, as opposed
// to an in-memory database or a URI.
func IsSQLiteFile(dsn string) bool {
	if dsn == "" || dsn == ":memory:" {
		return false
	}
	if len(dsn) >= 5 && dsn[:5] == "file:" {
		return false
	}
	return true
}

// RegularFile returns the cleaned path if it names an existing regular file
// under root, or os.ErrNotExist otherwise. Names escaping root are rejected.
func RegularFile(root, name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	p := filepath.Join(root, name)
	fi, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("%s: %w", p, os.ErrNotExist)
	}
	return p, nil
}
