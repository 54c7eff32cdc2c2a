// Package db persists channels, messages and reactions in pebble. It keeps
// one process-wide handle; call Open before use and Close on shutdown.
package db

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/logger"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/store/locks"
)

var (
	// Client is the open database or nil.
	Client *pebble.DB
	// Path is where Client was opened.
	Path string

	ErrNotOpen  = errors.New("pebble not opened; call db.Open first")
	ErrNotFound = errors.New("not found")
)

func Open(path string) error {
	if Client != nil {
		return nil
	}
	c, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return errors.Wrapf(err, "open pebble at %s", path)
	}
	Client, Path = c, path
	logger.Info("pebble_opened", "path", path)
	return nil
}

func Close() error {
	if Client == nil {
		return nil
	}
	if err := Client.Close(); err != nil {
		return errors.Wrap(err, "close pebble")
	}
	Client = nil
	locks.Reset()
	return nil
}

func Ready() bool {
	return Client != nil
}

// IsNotFound matches both ErrNotFound and pebble's own not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pebble.ErrNotFound)
}

func writeOpt() *pebble.WriteOptions {
	return pebble.Sync
}

// getValue copies the value for key into a fresh slice.
func getValue(key string) ([]byte, error) {
	if Client == nil {
		return nil, ErrNotOpen
	}
	v, closer, err := Client.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			logger.Debug("get_key_missing", "key", key)
			return nil, ErrNotFound
		}
		logger.Error("get_key_failed", "key", key, "error", err)
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func has(key string) (bool, error) {
	_, err := getValue(key)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}
