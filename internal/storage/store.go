package storage

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("key not found")

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Well-known keys of the persisted client state.
const (
	KeySettings  = "scannerSettings"
	KeyAuthToken = "auth_token"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// Store is a flat key-value store for client-local state. Values are opaque.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}

func Open(driver, dir string, compression bool, logger *logrus.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverFile:
		return NewFileStore(dir, compression, logger)
	case DriverSQLite:
		return NewSQLiteStore(dir, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}
