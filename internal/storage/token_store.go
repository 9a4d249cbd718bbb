package storage

import (
	"errors"
	"strings"
	"sync"
)

// TokenStore holds the bearer token. A missing token reads as "".
type TokenStore struct {
	store Store
	mu    sync.RWMutex
}

func NewTokenStore(store Store) *TokenStore {
	return &TokenStore{store: store}
}

func (t *TokenStore) Token() (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	data, err := t.store.Get(KeyAuthToken)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (t *TokenStore) SetToken(token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if token == "" {
		return t.store.Delete(KeyAuthToken)
	}
	return t.store.Put(KeyAuthToken, []byte(token))
}

func (t *TokenStore) Clear() error {
	return t.SetToken("")
}
