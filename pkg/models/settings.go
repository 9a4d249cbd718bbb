package models

import (
	"fmt"
	"strings"
)

// Settings is persisted as one record and always written wholesale.
type Settings struct {
	AIProvider      string `json:"aiProvider" yaml:"ai_provider"`
	OllamaURL       string `json:"ollamaUrl" yaml:"ollama_url"`
	OpenAIAPIKey    string `json:"openaiApiKey" yaml:"openai_api_key"`
	OpenRouteAPIKey string `json:"openrouteApiKey" yaml:"openroute_api_key"`

	MaxScanDuration   int    `json:"maxScanDuration" yaml:"max_scan_duration"`
	UserAgent         string `json:"userAgent" yaml:"user_agent"`
	EnablePassiveScan bool   `json:"enablePassiveScan" yaml:"enable_passive_scan"`
	EnableActiveScan  bool   `json:"enableActiveScan" yaml:"enable_active_scan"`
	DefaultScanType   string `json:"defaultScanType" yaml:"default_scan_type"`

	EmailNotifications bool   `json:"emailNotifications" yaml:"email_notifications"`
	SlackNotifications bool   `json:"slackNotifications" yaml:"slack_notifications"`
	WebhookURL         string `json:"webhookUrl" yaml:"webhook_url"`
}

func DefaultSettings() Settings {
	return Settings{
		AIProvider:        AIProviderOllama,
		OllamaURL:         "http://localhost:11434",
		MaxScanDuration:   300,
		UserAgent:         "SecurityScanner/1.0",
		EnablePassiveScan: true,
		EnableActiveScan:  true,
		DefaultScanType:   ScanTypeQuick,
	}
}

func (s *Settings) Validate() error {
	switch s.AIProvider {
	case AIProviderOllama, AIProviderOpenAI, AIProviderOpenRoute:
	default:
		return fmt.Errorf("invalid ai provider: %s", s.AIProvider)
	}
	if s.MaxScanDuration < 0 {
		return fmt.Errorf("max scan duration must not be negative")
	}
	if s.DefaultScanType != "" {
		ok := false
		for _, t := range ScanTypes {
			if t == s.DefaultScanType {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("invalid default scan type: %s", s.DefaultScanType)
		}
	}
	return nil
}

// ProviderKey returns the API key that belongs to the selected provider, if any.
func (s *Settings) ProviderKey() string {
	switch strings.ToLower(s.AIProvider) {
	case AIProviderOpenAI:
		return s.OpenAIAPIKey
	case AIProviderOpenRoute:
		return s.OpenRouteAPIKey
	}
	return ""
}
