package models

import (
	"time"
)

type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
	ScanStatusCancelled ScanStatus = "cancelled"
)

const (
	ScanTypeQuick   = "quick"
	ScanTypeFull    = "full"
	ScanTypeHeaders = "headers"
	ScanTypeSSL     = "ssl"
	ScanTypePorts   = "ports"
	ScanTypeCustom  = "custom"
)

var ScanTypes = []string{ScanTypeQuick, ScanTypeFull, ScanTypeHeaders, ScanTypeSSL, ScanTypePorts, ScanTypeCustom}

func (s ScanStatus) Terminal() bool {
	switch s {
	case ScanStatusCompleted, ScanStatusFailed, ScanStatusCancelled:
		return true
	}
	return false
}

func (s ScanStatus) Label() string {
	switch s {
	case ScanStatusPending:
		return "Pending"
	case ScanStatusRunning:
		return "Running"
	case ScanStatusCompleted:
		return "Completed"
	case ScanStatusFailed:
		return "Failed"
	case ScanStatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

type Scan struct {
	ID          string                 `json:"id" yaml:"id"`
	TargetURL   string                 `json:"target_url" yaml:"target_url"`
	Status      ScanStatus             `json:"status" yaml:"status"`
	CreatedAt   time.Time              `json:"created_at" yaml:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Findings    []Finding              `json:"findings" yaml:"findings"`
	ScanConfig  map[string]interface{} `json:"scan_config,omitempty" yaml:"scan_config,omitempty"`
	Progress    *float64               `json:"progress,omitempty" yaml:"progress,omitempty"`
}

func (s *Scan) Duration() time.Duration {
	if s.CompletedAt == nil || s.CreatedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.CreatedAt)
}

func (s *Scan) ScanType() string {
	if s.ScanConfig == nil {
		return ""
	}
	if v, ok := s.ScanConfig["scan_type"].(string); ok {
		return v
	}
	return ""
}

type CreateScanRequest struct {
	TargetURL string                 `json:"target_url"`
	ScanType  string                 `json:"scan_type"`
	Options   map[string]interface{} `json:"options,omitempty"`
}
