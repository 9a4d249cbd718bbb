package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bl4ck0w1/secdash/pkg/models"
	"github.com/bl4ck0w1/secdash/pkg/utils"
	"github.com/sirupsen/logrus"
)

// SettingsRepository persists the settings record as one JSON document.
// Loads fall back to defaults; saves replace the record wholesale.
type SettingsRepository struct {
	store      Store
	passphrase string
	logger     *logrus.Logger
	mu         sync.Mutex
}

func NewSettingsRepository(store Store, passphrase string, logger *logrus.Logger) *SettingsRepository {
	if logger == nil {
		logger = logrus.New()
	}
	return &SettingsRepository{store: store, passphrase: passphrase, logger: logger}
}

// Load returns the stored settings, or defaults if nothing was saved yet or
// the stored record cannot be decoded.
func (r *SettingsRepository) Load() (models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.store.Get(KeySettings)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.DefaultSettings(), fmt.Errorf("load settings: %w", err)
	}

	s := models.DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		r.logger.Warnf("Stored settings are unreadable, using defaults: %v", err)
		return models.DefaultSettings(), nil
	}

	if s.OpenAIAPIKey, err = utils.OpenString(r.passphrase, s.OpenAIAPIKey); err != nil {
		return s, fmt.Errorf("decrypt openai key: %w", err)
	}
	if s.OpenRouteAPIKey, err = utils.OpenString(r.passphrase, s.OpenRouteAPIKey); err != nil {
		return s, fmt.Errorf("decrypt openroute key: %w", err)
	}
	return s, nil
}

func (r *SettingsRepository) Save(s models.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.passphrase != "" {
		var err error
		if s.OpenAIAPIKey, err = r.seal(s.OpenAIAPIKey); err != nil {
			return err
		}
		if s.OpenRouteAPIKey, err = r.seal(s.OpenRouteAPIKey); err != nil {
			return err
		}
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := r.store.Put(KeySettings, data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	r.logger.Debugf("Settings saved (%d bytes)", len(data))
	return nil
}

func (r *SettingsRepository) Reset() error {
	if err := r.store.Delete(KeySettings); err != nil {
		return fmt.Errorf("reset settings: %w", err)
	}
	return nil
}

func (r *SettingsRepository) seal(v string) (string, error) {
	if v == "" || utils.IsSealed(v) {
		return v, nil
	}
	sealed, err := utils.SealString(r.passphrase, v)
	if err != nil {
		return "", fmt.Errorf("encrypt api key: %w", err)
	}
	return sealed, nil
}
