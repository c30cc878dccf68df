package state

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotExist is returned by Read when nothing was ever written under a key.
var ErrNotExist = errors.New("state: key does not exist")

const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindMemory = "memory"
)

// Backend stores opaque documents by key. Callers own the encoding.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Close() error
}

func Open(kind, dir, sqlitePath string) (Backend, error) {
	switch kind {
	case KindFile, "":
		return NewFileBackend(dir)
	case KindSQLite:
		return NewSQLiteBackend(sqlitePath)
	case KindMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", kind)
	}
}
