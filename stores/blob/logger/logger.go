// Package logger provides a debugging wrapper for blob.Store implementations.
//
// Every operation is logged at DEBUG level with its key, the result size or error,
// and the caller that issued it. The factory applies it when the store URL carries
// logger=true.
package logger

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/ulogger"
)

// blobStore mirrors blob.Store to avoid an import cycle with the factory.
type blobStore interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Exists(ctx context.Context, key []byte) (bool, error)
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key []byte, value []byte) error
	Del(ctx context.Context, key []byte) error
	Close(ctx context.Context) error
}

type Logger struct {
	logger ulogger.Logger
	store  blobStore
}

func New(logger ulogger.Logger, store blobStore) *Logger {
	return &Logger{
		logger: logger,
		store:  store,
	}
}

func caller() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}

	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func (s *Logger) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	status, message, err := s.store.Health(ctx, checkLiveness)
	s.logger.Debugf("[BlobStore][Health] status %d: %s, err %v (%s)", status, message, err, caller())

	return status, message, err
}

func (s *Logger) Exists(ctx context.Context, key []byte) (bool, error) {
	exists, err := s.store.Exists(ctx, key)
	s.logger.Debugf("[BlobStore][Exists] %q: %t, err %v (%s)", key, exists, err, caller())

	return exists, err
}

func (s *Logger) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, err := s.store.Get(ctx, key)
	s.logger.Debugf("[BlobStore][Get] %q: %d bytes, err %v (%s)", key, len(value), err, caller())

	return value, err
}

func (s *Logger) Set(ctx context.Context, key []byte, value []byte) error {
	err := s.store.Set(ctx, key, value)
	s.logger.Debugf("[BlobStore][Set] %q: %d bytes, err %v (%s)", key, len(value), err, caller())

	return err
}

func (s *Logger) Del(ctx context.Context, key []byte) error {
	err := s.store.Del(ctx, key)
	s.logger.Debugf("[BlobStore][Del] %q: err %v (%s)", key, err, caller())

	return err
}

func (s *Logger) Close(ctx context.Context) error {
	err := s.store.Close(ctx)
	s.logger.Debugf("[BlobStore][Close] err %v (%s)", err, caller())

	return err
}

func (s *Logger) IterateKeys(ctx context.Context, fn func(key []byte) error) error {
	iter, ok := s.store.(interface {
		IterateKeys(ctx context.Context, fn func(key []byte) error) error
	})
	if !ok {
		return errors.NewProcessingError("[BlobStore][IterateKeys] underlying store cannot iterate keys")
	}

	err := iter.IterateKeys(ctx, fn)
	s.logger.Debugf("[BlobStore][IterateKeys] err %v (%s)", err, caller())

	return err
}
