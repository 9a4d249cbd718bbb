package models

import (
	"time"
)

const (
	AIProviderOllama    = "ollama"
	AIProviderOpenAI    = "openai"
	AIProviderOpenRoute = "openroute"
)

var AIProviders = []string{AIProviderOllama, AIProviderOpenAI, AIProviderOpenRoute}

type SampleCode struct {
	Language string `json:"language" yaml:"language"`
	Code     string `json:"code" yaml:"code"`
}

type RemediationItem struct {
	Priority    Severity    `json:"priority" yaml:"priority"`
	FindingID   string      `json:"finding_id,omitempty" yaml:"finding_id,omitempty"`
	Action      string      `json:"action" yaml:"action"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	SampleCode  *SampleCode `json:"sample_code,omitempty" yaml:"sample_code,omitempty"`
	References  []string    `json:"references,omitempty" yaml:"references,omitempty"`
}

type AnalysisBody struct {
	Summary                   string            `json:"summary" yaml:"summary"`
	PrioritizedRemediation    []RemediationItem `json:"prioritized_remediation" yaml:"prioritized_remediation"`
	AdditionalRecommendations []string          `json:"additional_recommendations,omitempty" yaml:"additional_recommendations,omitempty"`
	Error                     string            `json:"error,omitempty" yaml:"error,omitempty"`
}

type AIAnalysis struct {
	ID        string       `json:"id" yaml:"id"`
	ScanID    string       `json:"scan_id" yaml:"scan_id"`
	Provider  string       `json:"provider" yaml:"provider"`
	Model     string       `json:"model" yaml:"model"`
	Analysis  AnalysisBody `json:"analysis" yaml:"analysis"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
}

func (a *AIAnalysis) SummaryText() string {
	if a.Analysis.Summary == "" {
		return "No summary available."
	}
	return a.Analysis.Summary
}

func (a *AIAnalysis) Failed() bool {
	return a.Analysis.Error != ""
}

type AIProvider struct {
	Name        string   `json:"name" yaml:"name"`
	DisplayName string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Models      []string `json:"models,omitempty" yaml:"models,omitempty"`
	Available   bool     `json:"available" yaml:"available"`
}

type AnalyzeRequest struct {
	ScanID   string `json:"scan_id"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}
