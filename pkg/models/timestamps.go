package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Backend timestamps may omit the zone; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (s *Scan) UnmarshalJSON(data []byte) error {
	type alias Scan
	aux := struct {
		*alias
		CreatedAt   string  `json:"created_at"`
		CompletedAt *string `json:"completed_at"`
	}{alias: (*alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	created, err := ParseTimestamp(aux.CreatedAt)
	if err != nil {
		return fmt.Errorf("scan created_at: %w", err)
	}
	s.CreatedAt = created
	s.CompletedAt = nil
	if aux.CompletedAt != nil && *aux.CompletedAt != "" {
		completed, err := ParseTimestamp(*aux.CompletedAt)
		if err != nil {
			return fmt.Errorf("scan completed_at: %w", err)
		}
		s.CompletedAt = &completed
	}
	return nil
}

func (a *AIAnalysis) UnmarshalJSON(data []byte) error {
	type alias AIAnalysis
	aux := struct {
		*alias
		CreatedAt string `json:"created_at"`
	}{alias: (*alias)(a)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	created, err := ParseTimestamp(aux.CreatedAt)
	if err != nil {
		return fmt.Errorf("analysis created_at: %w", err)
	}
	a.CreatedAt = created
	return nil
}
