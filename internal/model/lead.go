// Package model defines the core domain types shared across the agent
// pipeline and the intent engine.
package model

import (
	"strings"
	"time"
)

// Severity expresses how urgent a signal or recommendation is. The same
// vocabulary doubles as the recommendation priority.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank returns the sort rank for a severity: high sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// FitScoreBucket is the coarse tier a fit score falls into.
type FitScoreBucket string

const (
	BucketHigh   FitScoreBucket = "high"
	BucketMedium FitScoreBucket = "medium"
	BucketLow    FitScoreBucket = "low"
)

// BucketForScore maps a 0-100 fit score to its bucket. The boundaries are
// inclusive at 70 and 50.
func BucketForScore(score float64) FitScoreBucket {
	switch {
	case score >= 70:
		return BucketHigh
	case score >= 50:
		return BucketMedium
	default:
		return BucketLow
	}
}

// Location is a coarse geographic reference used in ICP criteria and leads.
type Location struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// IntRange bounds a numeric criterion such as employee count.
type IntRange struct {
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`
}

// ICPCriteria is the ideal-customer-profile filter used to both search for
// and score leads.
type ICPCriteria struct {
	Industries      []string   `json:"industries,omitempty"`
	Locations       []Location `json:"locations,omitempty"`
	EmployeeRange   *IntRange  `json:"employee_range,omitempty"`
	RevenueRange    *IntRange  `json:"revenue_range,omitempty"`
	Keywords        []string   `json:"keywords,omitempty"`
	Technologies    []string   `json:"technologies,omitempty"`
	Signals         []string   `json:"signals,omitempty"`
	ExcludeKeywords []string   `json:"exclude_keywords,omitempty"`
	SearchQueries   []string   `json:"search_queries,omitempty"`
}

// Empty reports whether the criteria carry no usable filters.
func (c *ICPCriteria) Empty() bool {
	if c == nil {
		return true
	}
	return len(c.Industries) == 0 && len(c.Locations) == 0 &&
		c.EmployeeRange == nil && c.RevenueRange == nil &&
		len(c.Keywords) == 0 && len(c.Technologies) == 0 &&
		len(c.Signals) == 0 && len(c.SearchQueries) == 0
}

// LeadSignal is a buying indicator attached to a discovered lead, e.g. the
// company is hiring.
type LeadSignal struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
}

// ContactRef is a person found during discovery.
type ContactRef struct {
	Name     string `json:"name,omitempty"`
	Title    string `json:"title,omitempty"`
	Email    string `json:"email,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
}

// DiscoveredLead is the transient candidate record accumulated across the
// discovery pipeline stages. Only its qualified, terminal form is persisted
// as a Lead.
type DiscoveredLead struct {
	CompanyName           string       `json:"company_name"`
	Domain                string       `json:"domain,omitempty"`
	URL                   string       `json:"url,omitempty"`
	Industry              string       `json:"industry,omitempty"`
	Description           string       `json:"description,omitempty"`
	Location              *Location    `json:"location,omitempty"`
	EmployeeCountEstimate int          `json:"employee_count_estimate,omitempty"`
	Technologies          []string     `json:"technologies,omitempty"`
	Signals               []LeadSignal `json:"signals,omitempty"`
	Contacts              []ContactRef `json:"contacts,omitempty"`
	Source                string       `json:"source"`
	SourceURL             string       `json:"source_url,omitempty"`
	FitScore              float64      `json:"fit_score"`
	MatchReasons          []string     `json:"match_reasons,omitempty"`
}

// DedupeKey returns the deduplication key for a candidate: the domain when
// present, otherwise the lower-cased company name.
func (d *DiscoveredLead) DedupeKey() string {
	if d.Domain != "" {
		return d.Domain
	}
	return strings.ToLower(d.CompanyName)
}

// Lead is a persisted, qualified discovery result.
type Lead struct {
	ID               string         `json:"id" db:"id"`
	CustomerID       string         `json:"customer_id" db:"customer_id"`
	CompanyName      string         `json:"company_name" db:"company_name"`
	Domain           string         `json:"domain,omitempty" db:"domain"`
	Industry         string         `json:"industry,omitempty" db:"industry"`
	EmployeeCount    int            `json:"employee_count,omitempty" db:"employee_count"`
	City             string         `json:"city,omitempty" db:"city"`
	State            string         `json:"state,omitempty" db:"state"`
	Country          string         `json:"country,omitempty" db:"country"`
	ContactFirstName string         `json:"contact_first_name,omitempty" db:"contact_first_name"`
	ContactLastName  string         `json:"contact_last_name,omitempty" db:"contact_last_name"`
	ContactEmail     string         `json:"contact_email,omitempty" db:"contact_email"`
	ContactTitle     string         `json:"contact_title,omitempty" db:"contact_title"`
	Source           string         `json:"source" db:"source"`
	GenerationJobID  string         `json:"generation_job_id,omitempty" db:"generation_job_id"`
	SourceURL        string         `json:"source_url,omitempty" db:"source_url"`
	FitScore         float64        `json:"fit_score" db:"fit_score"`
	CustomFields     map[string]any `json:"custom_fields,omitempty" db:"custom_fields"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// CreateLeadInput carries the fields for one lead in a bulk insert.
type CreateLeadInput struct {
	CompanyName      string         `json:"company_name"`
	Domain           string         `json:"domain,omitempty"`
	Industry         string         `json:"industry,omitempty"`
	EmployeeCount    int            `json:"employee_count,omitempty"`
	City             string         `json:"city,omitempty"`
	State            string         `json:"state,omitempty"`
	Country          string         `json:"country,omitempty"`
	ContactFirstName string         `json:"contact_first_name,omitempty"`
	ContactLastName  string         `json:"contact_last_name,omitempty"`
	ContactEmail     string         `json:"contact_email,omitempty"`
	ContactTitle     string         `json:"contact_title,omitempty"`
	Source           string         `json:"source"`
	GenerationJobID  string         `json:"generation_job_id,omitempty"`
	SourceURL        string         `json:"source_url,omitempty"`
	FitScore         float64        `json:"fit_score"`
	CustomFields     map[string]any `json:"custom_fields,omitempty"`
}

// RowError reports one rejected row from a bulk insert.
type RowError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkCreateResult is the outcome of a bulk lead insert. Rejected rows are
// reported individually and do not abort the batch.
type BulkCreateResult struct {
	Created []Lead     `json:"created"`
	Errors  []RowError `json:"errors,omitempty"`
}

// LeadGroup counts leads sharing a source and generation job, used for
// batched leads-ready signals.
type LeadGroup struct {
	Source          string `json:"source"`
	GenerationJobID string `json:"generation_job_id,omitempty"`
	Count           int    `json:"count"`
}

// BatchEntityID is the signal entity for a group of leads: the generation
// job when known, else the source.
func (g LeadGroup) BatchEntityID() string {
	if g.GenerationJobID != "" {
		return g.GenerationJobID
	}
	if g.Source != "" {
		return g.Source
	}
	return "manual"
}
