package models

import (
	"fmt"
	"strings"
)

const (
	FindingTypeVulnerability    = "vulnerability"
	FindingTypeMisconfiguration = "misconfiguration"
	FindingTypeInformation      = "information"
)

type Finding struct {
	ID            string                 `json:"id" yaml:"id"`
	ScanID        string                 `json:"scan_id,omitempty" yaml:"scan_id,omitempty"`
	Type          string                 `json:"type" yaml:"type"`
	Severity      Severity               `json:"severity" yaml:"severity"`
	Title         string                 `json:"title" yaml:"title"`
	Description   string                 `json:"description" yaml:"description"`
	Evidence      map[string]interface{} `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	OWASPCategory string                 `json:"owasp_category,omitempty" yaml:"owasp_category,omitempty"`
	CVEID         string                 `json:"cve_id,omitempty" yaml:"cve_id,omitempty"`
	Remediation   string                 `json:"remediation,omitempty" yaml:"remediation,omitempty"`
	Location      string                 `json:"location,omitempty" yaml:"location,omitempty"`
}

func (f *Finding) Validate() error {
	if f.Title == "" {
		return fmt.Errorf("finding title is required")
	}
	if !f.Severity.Valid() {
		return fmt.Errorf("invalid severity: %s", f.Severity)
	}
	return nil
}

func (f *Finding) HasRemediation() bool {
	return strings.TrimSpace(f.Remediation) != ""
}

func (f *Finding) GetCVELink() string {
	if f.CVEID == "" {
		return ""
	}
	return fmt.Sprintf("https://nvd.nist.gov/vuln/detail/%s", f.CVEID)
}

// OWASPLabel expands a short category code (A1..A10 or A01..A10) to its Top 10 2021 title.
// Anything else is returned as-is.
func (f *Finding) OWASPLabel() string {
	code := strings.ToUpper(strings.TrimSpace(f.OWASPCategory))
	if code == "" {
		return ""
	}
	if idx := strings.Index(code, ":"); idx > 0 {
		code = code[:idx]
	}
	code = strings.Replace(code, "A0", "A", 1)
	if label, ok := OWASPCategories[code]; ok {
		return label
	}
	return f.OWASPCategory
}

func (f *Finding) EvidenceString(key string) string {
	if f.Evidence == nil {
		return ""
	}
	v, ok := f.Evidence[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
