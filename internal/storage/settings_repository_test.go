package storage

import (
	"encoding/json"
	"testing"

	"github.com/bl4ck0w1/secdash/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsLoadDefaultsWhenMissing(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), false, quietLogger())
	require.NoError(t, err)
	repo := NewSettingsRepository(fs, "", quietLogger())

	s, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), s)
}

func TestSettingsSaveIsWholesale(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), false, quietLogger())
	require.NoError(t, err)
	repo := NewSettingsRepository(fs, "", quietLogger())

	s := models.DefaultSettings()
	s.AIProvider = models.AIProviderOpenAI
	s.OpenAIAPIKey = "sk-1"
	s.SlackNotifications = true
	require.NoError(t, repo.Save(s))

	raw, err := fs.Get(KeySettings)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "openai", doc["aiProvider"])
	assert.Equal(t, "sk-1", doc["openaiApiKey"])
	assert.Equal(t, true, doc["slackNotifications"])
	assert.Len(t, doc, 12)

	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestSettingsSaveRejectsInvalid(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), false, quietLogger())
	require.NoError(t, err)
	repo := NewSettingsRepository(fs, "", quietLogger())

	s := models.DefaultSettings()
	s.AIProvider = "skynet"
	assert.Error(t, repo.Save(s))
	_, err = fs.Get(KeySettings)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettingsSecretsEncryptedWithPassphrase(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), false, quietLogger())
	require.NoError(t, err)
	repo := NewSettingsRepository(fs, "hunter2", quietLogger())

	s := models.DefaultSettings()
	s.OpenAIAPIKey = "sk-secret"
	s.OpenRouteAPIKey = "or-secret"
	require.NoError(t, repo.Save(s))

	raw, err := fs.Get(KeySettings)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-secret")
	assert.NotContains(t, string(raw), "or-secret")

	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", loaded.OpenAIAPIKey)
	assert.Equal(t, "or-secret", loaded.OpenRouteAPIKey)

	_, err = NewSettingsRepository(fs, "", quietLogger()).Load()
	assert.Error(t, err)
}

func TestSettingsCorruptRecordFallsBack(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), false, quietLogger())
	require.NoError(t, err)
	require.NoError(t, fs.Put(KeySettings, []byte("{not json")))

	s, err := NewSettingsRepository(fs, "", quietLogger()).Load()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), s)
}

func TestTokenStore(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), false, quietLogger())
	require.NoError(t, err)
	ts := NewTokenStore(fs)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, ts.SetToken("abc.def.ghi"))
	tok, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	require.NoError(t, ts.Clear())
	tok, err = ts.Token()
	require.NoError(t, err)
	assert.Empty(t, tok)
}
