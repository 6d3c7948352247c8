// Package storage persists small named values of client state, such as the
// auth token, across process restarts.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// ErrCorrupt is returned by Get when a value exists but cannot be read back,
// for example after the sealing secret changed.
var ErrCorrupt = errors.New("storage: unreadable value")

// Store is a durable string key/value store. Delete of a missing key is not
// an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Options selects and configures a Store.
type Options struct {
	Driver        string
	Path          string
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Secret, when set, encrypts every stored value.
	Secret string
}

// Open builds the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case DriverFile, "":
		path := opts.Path
		if path == "" {
			if path, err = DefaultPath(); err != nil {
				return nil, err
			}
		}
		s = NewFileStore(path)
	case DriverPostgres:
		s, err = OpenPostgres(ctx, opts.DSN)
	case DriverRedis:
		s, err = OpenRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	case DriverMemory:
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if opts.Secret != "" {
		sealer, err := NewSealer([]byte(opts.Secret))
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s = Sealed(s, sealer)
	}
	return s, nil
}
