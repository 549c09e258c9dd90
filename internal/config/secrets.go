package config

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name API keys are stored under in the OS keyring.
const KeyringService = "voicelog"

// Keyring entries, one per provider.
const (
	SecretOpenAI    = "openai_api_key"
	SecretAnthropic = "anthropic_api_key"
	SecretDeepgram  = "deepgram_api_key"
)

// ErrSecretNotFound is returned when the keyring has no entry for a key.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore reads and writes provider API keys.
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// KeyringStore stores secrets in the OS keyring.
type KeyringStore struct {
	Service string
}

func (s KeyringStore) service() string {
	if s.Service == "" {
		return KeyringService
	}
	return s.Service
}

func (s KeyringStore) Get(key string) (string, error) {
	value, err := keyring.Get(s.service(), key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrSecretNotFound
	}
	return value, err
}

func (s KeyringStore) Set(key, value string) error {
	return keyring.Set(s.service(), key, value)
}

func (s KeyringStore) Delete(key string) error {
	err := keyring.Delete(s.service(), key)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrSecretNotFound
	}
	return err
}

// Secrets is consulted for API keys the file and environment leave empty.
var Secrets SecretStore = KeyringStore{}

// resolveSecrets fills empty API keys from the keyring. A locked or missing keyring leaves them empty.
func resolveSecrets(cfg *Config) {
	if Secrets == nil {
		return
	}
	fill := func(dst *string, key string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		if value, err := Secrets.Get(key); err == nil {
			*dst = strings.TrimSpace(value)
		}
	}
	fill(&cfg.OpenAI.APIKey, SecretOpenAI)
	fill(&cfg.Anthropic.APIKey, SecretAnthropic)
	fill(&cfg.Deepgram.APIKey, SecretDeepgram)
}
