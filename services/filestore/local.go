package filestore

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ptahub/core"
)

// localStorage keeps uploaded files on disk under a root directory.
// Keys are opaque so a rename or re-upload never clashes with older content.
type localStorage struct {
	root string
}

var _ core.FileStorage = (*localStorage)(nil)

func NewLocalStorage(conf *core.Config) (core.FileStorage, error) {
	if err := os.MkdirAll(conf.FileStore.Root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating file store root")
	}
	return &localStorage{root: conf.FileStore.Root}, nil
}

func (s *localStorage) Save(filename string, r io.Reader) (string, int64, error) {
	key := uuid.New().String() + filepath.Ext(filename)
	f, err := os.Create(filepath.Join(s.root, key))
	if err != nil {
		return "", 0, errors.Wrap(err, "creating file")
	}
	defer func() { _ = f.Close() }()

	size, err := io.Copy(f, r)
	if err != nil {
		_ = os.Remove(f.Name())
		return "", 0, errors.Wrap(err, "writing file")
	}
	return key, size, nil
}

func (s *localStorage) Open(key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.Base(key)))
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (s *localStorage) Delete(key string) error {
	if err := os.Remove(filepath.Join(s.root, filepath.Base(key))); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}
