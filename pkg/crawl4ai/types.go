package crawl4ai

// Criteria mirrors the ICP criteria shape the service accepts and returns.
// The agent layer converts between this and its own model.
type Criteria struct {
	Industries      []string    `json:"industries,omitempty"`
	Locations       []Location  `json:"locations,omitempty"`
	EmployeeRange   *Range      `json:"employee_range,omitempty"`
	RevenueRange    *Range      `json:"revenue_range,omitempty"`
	Keywords        []string    `json:"keywords,omitempty"`
	Technologies    []string    `json:"technologies,omitempty"`
	Signals         []string    `json:"signals,omitempty"`
	ExcludeKeywords []string    `json:"exclude_keywords,omitempty"`
	SearchQueries   []string    `json:"search_queries,omitempty"`
}

// Location is a geographic filter element.
type Location struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// Range bounds a numeric criterion.
type Range struct {
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`
}

// ParsePromptResponse is the result of parsing a free-text prompt.
type ParsePromptResponse struct {
	Criteria   Criteria `json:"criteria"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning,omitempty"`
}

// SearchCredentials carries optional upstream API keys for search sources.
type SearchCredentials struct {
	GoogleAPIKey     string `json:"google_api_key,omitempty"`
	GoogleCX         string `json:"google_cx,omitempty"`
	GoogleMapsAPIKey string `json:"google_maps_api_key,omitempty"`
}

// SearchRequest asks the service to find companies matching the criteria.
type SearchRequest struct {
	Criteria    Criteria           `json:"criteria"`
	Credentials *SearchCredentials `json:"credentials,omitempty"`
	MaxResults  int                `json:"max_results,omitempty"`
	Sources     []string           `json:"sources,omitempty"`
}

// SearchResult is one company found during search.
type SearchResult struct {
	Source                string         `json:"source"`
	CompanyName           string         `json:"company_name"`
	Domain                string         `json:"domain,omitempty"`
	URL                   string         `json:"url,omitempty"`
	Snippet               string         `json:"snippet,omitempty"`
	Industry              string         `json:"industry,omitempty"`
	Location              *Location      `json:"location,omitempty"`
	EmployeeCountEstimate string         `json:"employee_count_estimate,omitempty"`
	Confidence            float64        `json:"confidence"`
	RawData               map[string]any `json:"raw_data,omitempty"`
}

// SearchResponse lists all companies found.
type SearchResponse struct {
	Results           []SearchResult `json:"results"`
	Total             int            `json:"total"`
	SourcesUsed       []string       `json:"sources_used,omitempty"`
	SearchQueriesUsed []string       `json:"search_queries_used,omitempty"`
}

// CrawlOptions configures a deep crawl of a company website.
type CrawlOptions struct {
	ExtractContacts bool
	MaxPages        int
}

type crawlRequest struct {
	URL             string `json:"url"`
	ExtractContacts bool   `json:"extract_contacts"`
	MaxPages        int    `json:"max_pages,omitempty"`
}

// CrawlCompany is the company profile assembled from a deep crawl.
type CrawlCompany struct {
	Name                  string    `json:"name,omitempty"`
	Domain                string    `json:"domain"`
	Description           string    `json:"description,omitempty"`
	Industry              string    `json:"industry,omitempty"`
	EmployeeCountEstimate int       `json:"employee_count_estimate,omitempty"`
	Location              *Location `json:"location,omitempty"`
	Technologies          []string  `json:"technologies,omitempty"`
	HasCareersPage        bool      `json:"has_careers_page"`
	IsHiring              bool      `json:"is_hiring"`
}

// CrawlContact is a person extracted from a crawled site.
type CrawlContact struct {
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Email       string `json:"email,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

// CrawlResponse is the result of a deep crawl.
type CrawlResponse struct {
	Company          CrawlCompany   `json:"company"`
	Contacts         []CrawlContact `json:"contacts,omitempty"`
	PagesCrawled     int            `json:"pages_crawled"`
	FitScoreEstimate float64        `json:"fit_score_estimate"`
	CrawlTimeSeconds float64        `json:"crawl_time_seconds"`
}

// ScoreLead is one lead submitted for scoring.
type ScoreLead struct {
	CompanyName           string   `json:"company_name"`
	Domain                string   `json:"domain,omitempty"`
	Industry              string   `json:"industry,omitempty"`
	Location              *Location `json:"location,omitempty"`
	EmployeeCountEstimate int      `json:"employee_count_estimate,omitempty"`
	Description           string   `json:"description,omitempty"`
	Technologies          []string `json:"technologies,omitempty"`
	Signals               []string `json:"signals,omitempty"`
}

// ScoreRequest asks the service to score leads against criteria.
type ScoreRequest struct {
	Leads    []ScoreLead `json:"leads"`
	Criteria Criteria    `json:"criteria"`
}

// ScoredLead is one scored lead with its breakdown.
type ScoredLead struct {
	CompanyName    string         `json:"company_name"`
	Domain         string         `json:"domain,omitempty"`
	FitScore       float64        `json:"fit_score"`
	ScoreBreakdown map[string]any `json:"score_breakdown,omitempty"`
	MatchReasons   []string       `json:"match_reasons,omitempty"`
	Confidence     float64        `json:"confidence"`
}

// ScoreResponse lists scored leads and the batch average.
type ScoreResponse struct {
	ScoredLeads []ScoredLead `json:"scored_leads"`
	TotalScored int          `json:"total_scored"`
	AvgFitScore float64      `json:"avg_fit_score"`
}
