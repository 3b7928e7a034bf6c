// Package leveldb implements a blob.Store on an embedded LevelDB database.
package leveldb

import (
	"context"
	"net/http"

	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/storage"
	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/ulogger"
)

type LevelDB struct {
	db     *leveldb.DB
	logger ulogger.Logger
}

// New opens (or creates) the database at path.
func New(logger ulogger.Logger, path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.NewStorageError("[LevelDB] failed to open %s", path, err)
	}

	logger.Infof("[LevelDB] opened %s", path)

	return &LevelDB{db: db, logger: logger}, nil
}

// NewMemory opens a database backed by memory only.
func NewMemory(logger ulogger.Logger) (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.NewStorageError("[LevelDB] failed to open memory storage", err)
	}

	return &LevelDB{db: db, logger: logger}, nil
}

func (l *LevelDB) Health(_ context.Context, _ bool) (int, string, error) {
	if _, err := l.db.GetProperty("leveldb.stats"); err != nil {
		return http.StatusServiceUnavailable, "LevelDB Store: closed", err
	}

	return http.StatusOK, "LevelDB Store", nil
}

func (l *LevelDB) Close(_ context.Context) error {
	if err := l.db.Close(); err != nil {
		return errors.NewStorageError("[LevelDB] failed to close", err)
	}

	return nil
}

func (l *LevelDB) Set(_ context.Context, key []byte, value []byte) error {
	if err := l.db.Put(key, value, nil); err != nil {
		return errors.NewStorageError("[LevelDB][Set] failed to put %x", key, err)
	}

	return nil
}

func (l *LevelDB) Get(_ context.Context, key []byte) ([]byte, error) {
	b, err := l.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, errors.NewNotFoundError("[LevelDB][Get] blob %x not found", key)
		}

		return nil, errors.NewStorageError("[LevelDB][Get] failed to get %x", key, err)
	}

	return b, nil
}

func (l *LevelDB) Exists(_ context.Context, key []byte) (bool, error) {
	ok, err := l.db.Has(key, nil)
	if err != nil {
		return false, errors.NewStorageError("[LevelDB][Exists] failed to check %x", key, err)
	}

	return ok, nil
}

func (l *LevelDB) Del(_ context.Context, key []byte) error {
	if err := l.db.Delete(key, nil); err != nil {
		return errors.NewStorageError("[LevelDB][Del] failed to delete %x", key, err)
	}

	return nil
}

func (l *LevelDB) IterateKeys(ctx context.Context, fn func(key []byte) error) error {
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return errors.FromContext(ctx)
		}

		if err := fn(iter.Key()); err != nil {
			return err
		}
	}

	if err := iter.Error(); err != nil {
		return errors.NewStorageError("[LevelDB][IterateKeys] iteration failed", err)
	}

	return nil
}
