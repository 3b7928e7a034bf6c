// Package file implements a blob.Store keeping one file per key below a root directory.
//
// Keys are hex encoded and sharded into sub directories by their first byte. Writes go to a
// temporary file that is renamed into place, so a reader never sees a partial blob.
package file

import (
	"context"
	"encoding/hex"
	"net/http"
	"os"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/ulogger"
)

type File struct {
	path   string
	logger ulogger.Logger
}

func New(logger ulogger.Logger, path string) (*File, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.NewStorageError("[File] failed to create directory %s", path, err)
	}

	return &File{
		path:   path,
		logger: logger,
	}, nil
}

func (s *File) Health(_ context.Context, _ bool) (int, string, error) {
	if _, err := os.Stat(s.path); err != nil {
		return http.StatusServiceUnavailable, "File Store: path unavailable", err
	}

	return http.StatusOK, "File Store", nil
}

func (s *File) Close(_ context.Context) error {
	// noop
	return nil
}

func (s *File) filename(key []byte) string {
	name := hex.EncodeToString(key)

	shard := "00"
	if len(name) >= 2 {
		shard = name[:2]
	}

	return filepath.Join(s.path, shard, name)
}

func (s *File) Set(_ context.Context, key []byte, value []byte) error {
	fileName := s.filename(key)

	if err := os.MkdirAll(filepath.Dir(fileName), 0o755); err != nil {
		return errors.NewStorageError("[File][Set] failed to create shard directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fileName), ".tmp-*")
	if err != nil {
		return errors.NewStorageError("[File][Set] failed to create temporary file", err)
	}

	if _, err = tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return errors.NewStorageError("[File][Set] failed to write %s", fileName, err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.NewStorageError("[File][Set] failed to close %s", fileName, err)
	}

	if err = os.Rename(tmp.Name(), fileName); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.NewStorageError("[File][Set] failed to rename into %s", fileName, err)
	}

	return nil
}

func (s *File) Get(_ context.Context, key []byte) ([]byte, error) {
	b, err := os.ReadFile(s.filename(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("[File][Get] blob %x not found", key)
		}

		return nil, errors.NewStorageError("[File][Get] failed to read blob %x", key, err)
	}

	return b, nil
}

func (s *File) Exists(_ context.Context, key []byte) (bool, error) {
	_, err := os.Stat(s.filename(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, errors.NewStorageError("[File][Exists] failed to stat blob %x", key, err)
	}

	return true, nil
}

func (s *File) Del(_ context.Context, key []byte) error {
	if err := os.Remove(s.filename(key)); err != nil && !os.IsNotExist(err) {
		return errors.NewStorageError("[File][Del] failed to remove blob %x", key, err)
	}

	return nil
}

func (s *File) IterateKeys(ctx context.Context, fn func(key []byte) error) error {
	return filepath.WalkDir(s.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}

		if err = ctx.Err(); err != nil {
			return errors.FromContext(ctx)
		}

		key, err := hex.DecodeString(d.Name())
		if err != nil {
			// not one of ours
			return nil
		}

		return fn(key)
	})
}
