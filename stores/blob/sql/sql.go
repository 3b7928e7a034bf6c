// Package sql implements a blob.Store on a single key/value table in sqlite or postgres.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/labstack/gommon/random"
	_ "github.com/lib/pq"
	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/ulogger"
	_ "modernc.org/sqlite"
)

type SQL struct {
	url    *url.URL
	db     *sql.DB
	logger ulogger.Logger
}

func New(logger ulogger.Logger, storeURL *url.URL, dataFolder string) (*SQL, error) {
	var (
		db  *sql.DB
		err error
		q   string
	)

	switch storeURL.Scheme {
	case "postgres":
		dbHost := storeURL.Hostname()
		dbPort, _ := strconv.Atoi(storeURL.Port())
		dbName := storeURL.Path[1:]
		dbUser := ""
		dbPassword := ""

		if storeURL.User != nil {
			dbUser = storeURL.User.Username()
			dbPassword, _ = storeURL.User.Password()
		}

		dbInfo := fmt.Sprintf("user=%s password=%s dbname=%s sslmode=disable host=%s port=%d", dbUser, dbPassword, dbName, dbHost, dbPort)

		db, err = sql.Open(storeURL.Scheme, dbInfo)
		if err != nil {
			return nil, errors.NewStorageError("failed to open postgres DB", err)
		}

		q = `CREATE TABLE IF NOT EXISTS blob (
	     key BYTEA PRIMARY KEY
	    ,value BYTEA NOT NULL
	  );`

	case "sqlite", "sqlitememory":
		var filename string

		if storeURL.Scheme == "sqlitememory" {
			filename = fmt.Sprintf("file:%s?mode=memory&cache=shared", random.String(16))
		} else {
			if err = os.MkdirAll(dataFolder, 0o755); err != nil {
				return nil, errors.NewStorageError("failed to create data folder %s", dataFolder, err)
			}

			dbName := storeURL.Path[1:]

			filename, err = filepath.Abs(path.Join(dataFolder, fmt.Sprintf("%s.db", dbName)))
			if err != nil {
				return nil, errors.NewStorageError("failed to get absolute path for sqlite DB", err)
			}

			filename = fmt.Sprintf("%s?cache=shared&_pragma=busy_timeout=10000&_pragma=journal_mode=WAL", filename)
		}

		db, err = sql.Open("sqlite", filename)
		if err != nil {
			return nil, errors.NewStorageError("failed to open sqlite DB", err)
		}

		if storeURL.Scheme == "sqlitememory" {
			// the shared memory database disappears when its last connection closes
			db.SetMaxIdleConns(1)
			db.SetConnMaxLifetime(0)
		}

		q = `CREATE TABLE IF NOT EXISTS blob (
			 key BLOB PRIMARY KEY
			,value BLOB NOT NULL
		);`

	default:
		return nil, errors.NewConfigurationError("unknown database engine %s", storeURL.Scheme)
	}

	if _, err = db.Exec(q); err != nil {
		_ = db.Close()
		return nil, errors.NewStorageError("failed to create blob table", err)
	}

	logger.Infof("[SQL] opened %s store", storeURL.Scheme)

	return &SQL{
		url:    storeURL,
		db:     db,
		logger: logger,
	}, nil
}

func (m *SQL) Health(ctx context.Context, _ bool) (int, string, error) {
	if err := m.db.PingContext(ctx); err != nil {
		return http.StatusServiceUnavailable, fmt.Sprintf("%s Store: unreachable", m.url.Scheme), err
	}

	return http.StatusOK, fmt.Sprintf("%s Store", m.url.Scheme), nil
}

func (m *SQL) Close(_ context.Context) error {
	return m.db.Close()
}

func (m *SQL) Set(ctx context.Context, key []byte, value []byte) error {
	// Upsert the key and value
	_, err := m.db.ExecContext(ctx, "INSERT INTO blob (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = $2", key, value)
	if err != nil {
		return errors.NewStorageError("[SQL][Set] failed to store blob %x", key, err)
	}

	return nil
}

func (m *SQL) Get(ctx context.Context, key []byte) ([]byte, error) {
	var b []byte

	err := m.db.QueryRowContext(ctx, "SELECT value FROM blob WHERE key = $1", key).Scan(&b)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("[SQL][Get] blob %x not found", key)
		}

		return nil, errors.NewStorageError("[SQL][Get] failed to read blob %x", key, err)
	}

	return b, nil
}

func (m *SQL) Exists(ctx context.Context, key []byte) (bool, error) {
	var v int

	err := m.db.QueryRowContext(ctx, "SELECT 1 FROM blob WHERE key = $1", key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, errors.NewStorageError("[SQL][Exists] failed to check blob %x", key, err)
	}

	return true, nil
}

func (m *SQL) Del(ctx context.Context, key []byte) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM blob WHERE key = $1", key); err != nil {
		return errors.NewStorageError("[SQL][Del] failed to delete blob %x", key, err)
	}

	return nil
}

func (m *SQL) IterateKeys(ctx context.Context, fn func(key []byte) error) error {
	rows, err := m.db.QueryContext(ctx, "SELECT key FROM blob")
	if err != nil {
		return errors.NewStorageError("[SQL][IterateKeys] failed to query keys", err)
	}

	defer rows.Close()

	for rows.Next() {
		var key []byte
		if err = rows.Scan(&key); err != nil {
			return errors.NewStorageError("[SQL][IterateKeys] failed to scan key", err)
		}

		if err = fn(key); err != nil {
			return err
		}
	}

	if err = rows.Err(); err != nil {
		return errors.NewStorageError("[SQL][IterateKeys] iteration failed", err)
	}

	return nil
}
