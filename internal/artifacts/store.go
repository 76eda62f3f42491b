// Package artifacts fetches model and encoder files, either from a local
// directory or from an S3-compatible bucket.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/windbreaker/internal/common"
	"github.com/dmitrijs2005/windbreaker/internal/filex"
)

// Store opens artifacts by name. A missing artifact yields an error
// wrapping common.ErrNotFound. Callers close the returned reader.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// DirStore serves artifacts from a directory. Absolute names bypass the
// root so individual files can be pinned elsewhere on disk.
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

func (s *DirStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		p   string
		err error
	)
	if filepath.IsAbs(name) {
		p = name
	} else {
		p, err = filex.RegularFile(s.root, name)
	}
	if err == nil {
		var f *os.File
		f, err = os.Open(p)
		if err == nil {
			return f, nil
		}
	}

	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("artifact %s: %w", name, common.ErrNotFound)
	}
	return nil, fmt.Errorf("artifact %s: %w", name, err)
}
